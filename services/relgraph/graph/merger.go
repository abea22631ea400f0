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

// Merger builds bidirectional call graphs around a root.
//
// Thread Safety: Safe for concurrent use.
type Merger struct {
	fetcher *Fetcher
	store   store.Store
}

// NewMerger creates a merger.
func NewMerger(f *Fetcher, s store.Store) *Merger {
	return &Merger{fetcher: f, store: s}
}

// Merge returns the union of the callee expansion (calleeDepth hops) and the
// caller expansion (callerDepth hops) around root.
//
// Description:
//
//	Nodes are deduplicated by id: the root comes first and is flagged
//	IsRoot, the rest follow in order of first appearance in the edge list
//	(From before To). Entity rows are resolved with a single batched read;
//	ids without a row become "unknown" nodes marked NotFound. Repeating a
//	request against an unchanged store yields the same result in the same
//	order.
func (m *Merger) Merge(ctx context.Context, root model.Entity, calleeDepth, callerDepth int) (*model.GraphResult, error) {
	edges, err := m.fetcher.FetchBoth(ctx, root.ID, calleeDepth, callerDepth)
	if err != nil {
		return nil, err
	}
	nodes, err := m.nodes(ctx, root, edges)
	if err != nil {
		return nil, err
	}
	rootID := root.ID
	return &model.GraphResult{Root: &rootID, Nodes: nodes, Edges: edges}, nil
}

// Downstream returns the callee-only subgraph around root.
func (m *Merger) Downstream(ctx context.Context, root model.Entity, depth int) (*model.GraphResult, error) {
	fetched, err := m.fetcher.Fetch(ctx, FetchRequest{RootID: root.ID, Direction: model.Callees, MaxDepth: depth})
	if err != nil {
		return nil, err
	}

	edges := make([]model.GraphEdge, 0, len(fetched))
	seen := make(map[model.EdgeKey]struct{}, len(fetched))
	for _, e := range fetched {
		if _, dup := seen[e.Key()]; dup {
			continue
		}
		seen[e.Key()] = struct{}{}
		edges = append(edges, model.GraphEdge{
			From:        e.CallerID,
			To:          e.CalleeID,
			Line:        e.Line,
			CalleeDepth: model.IntPtr(e.Depth),
		})
	}

	nodes, err := m.nodes(ctx, root, edges)
	if err != nil {
		return nil, err
	}
	rootID := root.ID
	return &model.GraphResult{Root: &rootID, Nodes: nodes, Edges: edges}, nil
}

func (m *Merger) nodes(ctx context.Context, root model.Entity, edges []model.GraphEdge) ([]model.GraphNode, error) {
	order := make([]int64, 0, 2*len(edges)+1)
	seen := map[int64]struct{}{root.ID: {}}
	for _, e := range edges {
		for _, id := range [2]int64{e.From, e.To} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			order = append(order, id)
		}
	}

	byID := make(map[int64]model.Entity, len(order))
	if len(order) > 0 {
		ents, err := m.store.FetchEntitiesByID(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("resolve graph entities: %w", err)
		}
		for _, e := range ents {
			byID[e.ID] = e
		}
	}

	rootNode := model.NewGraphNode(root)
	rootNode.IsRoot = true
	nodes := make([]model.GraphNode, 0, len(order)+1)
	nodes = append(nodes, rootNode)
	for _, id := range order {
		if e, ok := byID[id]; ok {
			nodes = append(nodes, model.NewGraphNode(e))
		} else {
			nodes = append(nodes, model.MissingGraphNode(id))
		}
	}
	return nodes, nil
}
