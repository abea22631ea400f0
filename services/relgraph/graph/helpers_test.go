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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
	"github.com/AleutianAI/relgraph/services/relgraph/store/memory"
	"github.com/AleutianAI/relgraph/services/relgraph/storetest"
)

// loadEdges writes a graph written as "A->B B->C C->C" into w. Entities are
// created in order of first appearance; edge i gets line (i+1)*10.
func loadEdges(t *testing.T, w store.Writer, edgeList string) map[string]int64 {
	t.Helper()
	ids := make(map[string]int64)
	id := func(sym string) int64 {
		if v, ok := ids[sym]; ok {
			return v
		}
		v := storetest.MustUpsert(t, w, storetest.Entity(sym, strings.ToLower(sym)+".go"))
		ids[sym] = v
		return v
	}
	for i, pair := range strings.Fields(edgeList) {
		parts := strings.Split(pair, "->")
		require.Len(t, parts, 2, "bad edge %q", pair)
		storetest.MustLink(t, w, id(parts[0]), id(parts[1]), (i+1)*10)
	}
	return ids
}

// newTestEngine returns an engine over a memory store holding edgeList.
func newTestEngine(t *testing.T, edgeList string, opts ...Option) (*Engine, *memory.Store, map[string]int64) {
	t.Helper()
	s := memory.New()
	ids := loadEdges(t, s, edgeList)
	return NewEngine(s, opts...), s, ids
}

// symbols lists the symbols of a tree level.
func symbols(nodes []*model.TreeNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Symbol
	}
	return out
}

// treeSymbols returns every symbol in the tree.
func treeSymbols(tree *model.TreeNode) map[string]bool {
	out := make(map[string]bool)
	tree.Walk(func(n *model.TreeNode, _ int) {
		out[n.Symbol] = true
	})
	return out
}

var errStoreDown = errors.New("store down")

// failingStore fails the named operation and delegates everything else.
type failingStore struct {
	store.Store
	failOn string
}

func (f *failingStore) FetchEntity(ctx context.Context, q store.EntityQuery) ([]model.Entity, error) {
	if f.failOn == "FetchEntity" {
		return nil, errStoreDown
	}
	return f.Store.FetchEntity(ctx, q)
}

func (f *failingStore) FetchEdgesFrom(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	if f.failOn == "FetchEdgesFrom" {
		return nil, errStoreDown
	}
	return f.Store.FetchEdgesFrom(ctx, ids)
}

func (f *failingStore) FetchEdgesTo(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	if f.failOn == "FetchEdgesTo" {
		return nil, errStoreDown
	}
	return f.Store.FetchEdgesTo(ctx, ids)
}

func (f *failingStore) FetchEntitiesByID(ctx context.Context, ids []int64) ([]model.Entity, error) {
	if f.failOn == "FetchEntitiesByID" {
		return nil, errStoreDown
	}
	return f.Store.FetchEntitiesByID(ctx, ids)
}

func (f *failingStore) FetchGlobalCallerCounts(ctx context.Context, ids []int64) (map[int64]int, error) {
	if f.failOn == "FetchGlobalCallerCounts" {
		return nil, errStoreDown
	}
	return f.Store.FetchGlobalCallerCounts(ctx, ids)
}

// countingStore counts batched edge reads.
type countingStore struct {
	store.Store
	edgeCalls int
}

func (c *countingStore) FetchEdgesFrom(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	c.edgeCalls++
	return c.Store.FetchEdgesFrom(ctx, ids)
}

func (c *countingStore) FetchEdgesTo(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	c.edgeCalls++
	return c.Store.FetchEdgesTo(ctx, ids)
}
