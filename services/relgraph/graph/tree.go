// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"fmt"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
)

// DefaultMaxTreeNodes bounds the size of a materialized tree.
//
// Trees enumerate paths, not nodes, so a dense DAG can produce exponentially
// many nodes within a modest depth.
const DefaultMaxTreeNodes = 50000

// TreeBuilder materializes single-direction call trees.
//
// Thread Safety: Safe for concurrent use.
type TreeBuilder struct {
	fetcher  *Fetcher
	store    store.Store
	maxNodes int
}

// NewTreeBuilder creates a tree builder. maxNodes <= 0 means
// DefaultMaxTreeNodes.
func NewTreeBuilder(f *Fetcher, s store.Store, maxNodes int) *TreeBuilder {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxTreeNodes
	}
	return &TreeBuilder{fetcher: f, store: s, maxNodes: maxNodes}
}

// Build expands root in direction dir up to depth hops.
//
// Description:
//
//	The root sits at depth 0 and a node at depth d is expanded only while
//	d < depth. Along each descent path the ancestors are tracked; a child
//	equal to one of them (including the root, or the node itself for a
//	self-call) becomes a leaf marked Loop. Children follow the fetcher's
//	edge order and duplicate call sites each produce their own child. An
//	edge whose far endpoint has no entity row produces an "unknown" leaf
//	marked NotFound.
//
// Inputs:
//
//	root - The resolved root entity.
//	dir - model.Callees or model.Callers.
//	depth - Normalized hop bound (>= 1).
//
// Outputs:
//
//	*model.TreeNode - The tree. Root.Truncated is set if the node budget ran out.
//	error - Wrapped store failure, or an invalid depth/direction.
func (b *TreeBuilder) Build(ctx context.Context, root model.Entity, dir model.Direction, depth int) (*model.TreeNode, error) {
	edges, err := b.fetcher.Fetch(ctx, FetchRequest{RootID: root.ID, Direction: dir, MaxDepth: depth})
	if err != nil {
		return nil, err
	}

	far := make([]int64, 0, len(edges))
	for _, e := range edges {
		far = append(far, dir.Next(e.Relationship))
	}
	ents, err := b.store.FetchEntitiesByID(ctx, store.UniqueIDs(far))
	if err != nil {
		return nil, fmt.Errorf("resolve tree entities: %w", err)
	}

	t := &treeBuild{
		dir:      dir,
		maxDepth: depth,
		maxNodes: b.maxNodes,
		adj:      adjacency(edges, dir),
		entities: make(map[int64]model.Entity, len(ents)+1),
		path:     make(map[int64]bool),
	}
	for _, e := range ents {
		t.entities[e.ID] = e
	}
	t.entities[root.ID] = root

	tree := model.NewTreeNode(root, dir)
	t.count = 1
	t.expand(tree, 0)
	tree.Truncated = t.truncated
	return tree, nil
}

// treeBuild is the request-local state of one Build call.
type treeBuild struct {
	dir      model.Direction
	maxDepth int
	maxNodes int

	adj      map[int64][]model.DepthEdge
	entities map[int64]model.Entity
	path     map[int64]bool

	count     int
	truncated bool
}

func (t *treeBuild) expand(n *model.TreeNode, depth int) {
	if depth >= t.maxDepth {
		return
	}
	edges := t.adj[n.ID]
	n.Expanded = true
	n.Children = make([]*model.TreeNode, 0, len(edges))

	t.path[n.ID] = true
	defer delete(t.path, n.ID)

	for _, e := range edges {
		if t.count >= t.maxNodes {
			t.truncated = true
			return
		}
		t.count++

		id := t.dir.Next(e.Relationship)
		child := t.node(id)
		child.CallLine = e.Line
		n.Children = append(n.Children, child)

		switch {
		case t.path[id]:
			child.Loop = true
		case child.NotFound:
		default:
			t.expand(child, depth+1)
		}
	}
}

func (t *treeBuild) node(id int64) *model.TreeNode {
	e, ok := t.entities[id]
	if !ok {
		return &model.TreeNode{ID: id, Symbol: model.UnknownSymbol, NotFound: true, Direction: t.dir}
	}
	return model.NewTreeNode(e, t.dir)
}
