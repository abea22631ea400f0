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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store/memory"
	"github.com/AleutianAI/relgraph/services/relgraph/storetest"
)

func TestEngine_BuildCallerTree_NoCallers(t *testing.T) {
	e, _, ids := newTestEngine(t, "A->B")

	tree, err := e.BuildCallerTree(context.Background(), TreeRequest{Symbol: "A", Depth: 1})
	require.NoError(t, err)
	assert.Equal(t, ids["A"], tree.ID)
	assert.True(t, tree.Expanded)
	assert.Empty(t, tree.Children)

	out, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"callers":[]`)
	assert.NotContains(t, string(out), `"children"`)
}

func TestEngine_BuildCallerTree(t *testing.T) {
	e, _, ids := newTestEngine(t, "A->C B->C D->B")

	tree, err := e.BuildCallerTree(context.Background(), TreeRequest{Symbol: "C", Depth: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, symbols(tree.Children))
	assert.Equal(t, 10, tree.Children[0].CallLine)
	assert.Equal(t, 20, tree.Children[1].CallLine)

	b := tree.Children[1]
	require.Equal(t, []string{"D"}, symbols(b.Children))
	assert.Equal(t, ids["D"], b.Children[0].ID)
	assert.Equal(t, model.Callers, b.Children[0].Direction)
}

func TestEngine_BuildCalleeTree_SelfLoop(t *testing.T) {
	e, _, ids := newTestEngine(t, "A->A")

	for _, depth := range []int{1, 3, UnlimitedTreeDepth} {
		tree, err := e.BuildCalleeTree(context.Background(), TreeRequest{Symbol: "A", Depth: depth})
		require.NoError(t, err)
		require.Len(t, tree.Children, 1)

		child := tree.Children[0]
		assert.Equal(t, ids["A"], child.ID)
		assert.True(t, child.Loop, "depth %d", depth)
		assert.False(t, child.Expanded, "a loop leaf is not expanded")
		assert.Empty(t, child.Children)
	}
}

func TestEngine_BuildCalleeTree_MutualRecursion(t *testing.T) {
	e, _, _ := newTestEngine(t, "A->B B->A B->C")

	tree, err := e.BuildCalleeTree(context.Background(), TreeRequest{Symbol: "A", Depth: UnlimitedTreeDepth})
	require.NoError(t, err)
	require.Equal(t, []string{"B"}, symbols(tree.Children))

	b := tree.Children[0]
	require.Equal(t, []string{"A", "C"}, symbols(b.Children))
	assert.True(t, b.Children[0].Loop)
	assert.False(t, b.Children[1].Loop)
	assert.True(t, b.Children[1].Expanded)
	assert.Empty(t, b.Children[1].Children)
}

func TestEngine_BuildCalleeTree_ChainDepth(t *testing.T) {
	e, _, _ := newTestEngine(t, "A->B B->C C->D")

	tests := []struct {
		depth   int
		present []string
		absent  []string
	}{
		{1, []string{"A", "B"}, []string{"C", "D"}},
		{2, []string{"A", "B", "C"}, []string{"D"}},
		{3, []string{"A", "B", "C", "D"}, nil},
		{UnlimitedTreeDepth, []string{"A", "B", "C", "D"}, nil},
	}
	for _, tt := range tests {
		tree, err := e.BuildCalleeTree(context.Background(), TreeRequest{Symbol: "A", Depth: tt.depth})
		require.NoError(t, err)
		got := treeSymbols(tree)
		for _, sym := range tt.present {
			assert.True(t, got[sym], "depth %d should include %s", tt.depth, sym)
		}
		for _, sym := range tt.absent {
			assert.False(t, got[sym], "depth %d should exclude %s", tt.depth, sym)
		}
	}

	tree, err := e.BuildCalleeTree(context.Background(), TreeRequest{Symbol: "A", Depth: 2})
	require.NoError(t, err)
	c := tree.Children[0].Children[0]
	assert.Equal(t, "C", c.Symbol)
	assert.False(t, c.Expanded, "depth cut-off leaves are not expanded")

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"children"`)
}

func TestEngine_BuildCalleeTree_DuplicateCallSites(t *testing.T) {
	e, _, _ := newTestEngine(t, "A->B A->B A->C")

	tree, err := e.BuildCalleeTree(context.Background(), TreeRequest{Symbol: "A", Depth: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"B", "B", "C"}, symbols(tree.Children))
	assert.Equal(t, 10, tree.Children[0].CallLine)
	assert.Equal(t, 20, tree.Children[1].CallLine)
	assert.NotSame(t, tree.Children[0], tree.Children[1])
}

func TestEngine_BuildCalleeTree_Dangling(t *testing.T) {
	e, s, ids := newTestEngine(t, "A->B B->C")
	require.NoError(t, s.DeleteEntity(context.Background(), ids["B"]))

	tree, err := e.BuildCalleeTree(context.Background(), TreeRequest{Symbol: "A", Depth: 3})
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)

	leaf := tree.Children[0]
	assert.Equal(t, ids["B"], leaf.ID)
	assert.Equal(t, model.UnknownSymbol, leaf.Symbol)
	assert.True(t, leaf.NotFound)
	assert.Equal(t, 10, leaf.CallLine)
	assert.False(t, leaf.Expanded)
}

func TestEngine_BuildCallerTree_Dangling(t *testing.T) {
	e, s, ids := newTestEngine(t, "A->B B->C")
	require.NoError(t, s.DeleteEntity(context.Background(), ids["B"]))

	tree, err := e.BuildCallerTree(context.Background(), TreeRequest{Symbol: "C", Depth: 3})
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)

	leaf := tree.Children[0]
	assert.Equal(t, ids["B"], leaf.ID)
	assert.Equal(t, model.UnknownSymbol, leaf.Symbol)
	assert.True(t, leaf.NotFound)
	assert.Equal(t, 20, leaf.CallLine)
	assert.False(t, leaf.Expanded)

	out, err := json.Marshal(tree)
	require.NoError(t, err)
	var decoded struct {
		Callers []map[string]any `json:"callers"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded.Callers, 1)
	assert.Equal(t, map[string]any{
		"id":        float64(ids["B"]),
		"symbol":    "unknown",
		"call_line": float64(20),
		"not_found": true,
	}, decoded.Callers[0])
	assert.NotContains(t, string(out), `"children"`)
}

func TestEngine_BuildTree_NotFound(t *testing.T) {
	e, _, _ := newTestEngine(t, "A->B")

	tree, err := e.BuildCalleeTree(context.Background(), TreeRequest{Symbol: "Missing", Depth: 1})
	require.NoError(t, err)
	assert.True(t, tree.NotFound)
	assert.Equal(t, "Missing", tree.Symbol)

	out, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"Missing","not_found":true}`, string(out))
}

func TestEngine_BuildTree_InvalidRequest(t *testing.T) {
	e, _, _ := newTestEngine(t, "A->B")
	ctx := context.Background()

	_, err := e.BuildCalleeTree(ctx, TreeRequest{Symbol: "A", Depth: 0})
	assert.ErrorIs(t, err, ErrInvalidDepth)

	_, err = e.BuildCallerTree(ctx, TreeRequest{Symbol: "A", Depth: -2})
	assert.ErrorIs(t, err, ErrInvalidDepth)

	_, err = e.BuildCallerTree(ctx, TreeRequest{Symbol: "  ", Depth: 1})
	assert.ErrorIs(t, err, ErrEmptySymbol)
}

func TestEngine_BuildTree_Truncated(t *testing.T) {
	// Every layer doubles the number of paths.
	e, _, _ := newTestEngine(t, "A->B A->C B->D C->D D->E D->F E->G F->G",
		WithMaxTreeNodes(6))

	tree, err := e.BuildCalleeTree(context.Background(), TreeRequest{Symbol: "A", Depth: UnlimitedTreeDepth})
	require.NoError(t, err)
	assert.True(t, tree.Truncated)
	assert.Equal(t, 6, tree.Size())

	full, err := NewEngine(e.store).BuildCalleeTree(context.Background(), TreeRequest{Symbol: "A", Depth: UnlimitedTreeDepth})
	require.NoError(t, err)
	assert.False(t, full.Truncated)
	assert.Equal(t, 13, full.Size())
}

func TestEngine_BuildTree_Disambiguation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	first := storetest.MustUpsert(t, s, storetest.Entity("Run", "a.go"))
	second := storetest.MustUpsert(t, s, storetest.Entity("Run", "b.go"))
	other := storetest.Entity("Run", "c.go")
	other.ProjectID = 2
	third := storetest.MustUpsert(t, s, other)
	e := NewEngine(s)

	tests := []struct {
		name string
		req  TreeRequest
		want int64
	}{
		{"first match", TreeRequest{Symbol: "Run", Depth: 1}, first},
		{"filename", TreeRequest{Symbol: "Run", Filename: "b.go", Depth: 1}, second},
		{"project", TreeRequest{Symbol: "Run", ProjectID: 2, Depth: 1}, third},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := e.BuildCalleeTree(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tree.ID)
		})
	}

	tree, err := e.BuildCalleeTree(ctx, TreeRequest{Symbol: "Run", ProjectID: 3, Depth: 1})
	require.NoError(t, err)
	assert.True(t, tree.NotFound)
}

func TestEngine_BuildCallGraph_NotFound(t *testing.T) {
	e, _, _ := newTestEngine(t, "A->B")

	g, err := e.BuildCallGraph(context.Background(), GraphRequest{Symbol: "Missing"})
	require.NoError(t, err)
	assert.Nil(t, g.Root)

	out, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"root":null,"nodes":[],"edges":[]}`, string(out))
}

func TestEngine_BuildCallGraph_Bidirectional(t *testing.T) {
	// A and B call each other; C calls A; A calls D.
	e, _, ids := newTestEngine(t, "A->B B->A C->A A->D")

	g, err := e.BuildCallGraph(context.Background(), GraphRequest{Symbol: "A", MaxDepth: 2})
	require.NoError(t, err)
	require.NotNil(t, g.Root)
	assert.Equal(t, ids["A"], *g.Root)

	seen := make(map[int64]int)
	for _, n := range g.Nodes {
		seen[n.ID]++
	}
	for sym, id := range ids {
		assert.Equal(t, 1, seen[id], "%s must appear exactly once", sym)
	}
	assert.True(t, g.Nodes[0].IsRoot)
	assert.Equal(t, ids["A"], g.Nodes[0].ID)
	for _, n := range g.Nodes[1:] {
		assert.False(t, n.IsRoot)
	}

	for _, edge := range g.Edges {
		assert.True(t, edge.CalleeDepth != nil || edge.CallerDepth != nil, "edge %d->%d", edge.From, edge.To)
	}

	byKey := make(map[[2]int64]model.GraphEdge)
	for _, edge := range g.Edges {
		byKey[[2]int64{edge.From, edge.To}] = edge
	}
	ab := byKey[[2]int64{ids["A"], ids["B"]}]
	require.NotNil(t, ab.CalleeDepth)
	require.NotNil(t, ab.CallerDepth)
	assert.Equal(t, 1, *ab.CalleeDepth)
	assert.Equal(t, 2, *ab.CallerDepth)

	ca := byKey[[2]int64{ids["C"], ids["A"]}]
	assert.Nil(t, ca.CalleeDepth)
	require.NotNil(t, ca.CallerDepth)
	assert.Equal(t, 1, *ca.CallerDepth)

	ad := byKey[[2]int64{ids["A"], ids["D"]}]
	assert.Nil(t, ad.CallerDepth)
	assert.Equal(t, 1, *ad.CalleeDepth)
}

func TestEngine_BuildCallGraph_DepthOne(t *testing.T) {
	e, _, _ := newTestEngine(t, "R->A R->B R->C R->D A->E B->F E->G")

	g, err := e.BuildCallGraph(context.Background(), GraphRequest{Symbol: "R", MaxDepth: 1})
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 5)
	assert.Len(t, g.Edges, 4)
}

func TestEngine_BuildCallGraph_IndependentDepths(t *testing.T) {
	e, _, _ := newTestEngine(t, "X->Y Y->R R->A A->B")

	g, err := e.BuildCallGraph(context.Background(), GraphRequest{Symbol: "R", MaxDepth: 2, CallerDepth: 1})
	require.NoError(t, err)

	var syms []string
	for _, n := range g.Nodes {
		syms = append(syms, n.Symbol)
	}
	assert.Equal(t, []string{"R", "A", "B", "Y"}, syms)
}

func TestEngine_BuildCallGraph_Dangling(t *testing.T) {
	e, s, ids := newTestEngine(t, "A->B")
	storetest.MustLink(t, s, ids["A"], 4242, 99)

	g, err := e.BuildCallGraph(context.Background(), GraphRequest{Symbol: "A", MaxDepth: 1})
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, model.MissingGraphNode(4242), g.Nodes[2])
}

func TestEngine_BuildCallGraph_Idempotent(t *testing.T) {
	e, _, _ := newTestEngine(t, "A->B B->C C->A A->C D->A D->B B->B A->B")
	req := GraphRequest{Symbol: "B", MaxDepth: UnlimitedGraphDepth}

	first, err := e.BuildCallGraph(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.BuildCallGraph(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEngine_BuildCallGraph_InvalidDepth(t *testing.T) {
	e, _, _ := newTestEngine(t, "A->B")

	_, err := e.BuildCallGraph(context.Background(), GraphRequest{Symbol: "A", MaxDepth: -1})
	assert.ErrorIs(t, err, ErrInvalidDepth)

	_, err = e.BuildHeatmap(context.Background(), GraphRequest{Symbol: "A", MaxDepth: -5})
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestEngine_BuildHeatmap_Diamond(t *testing.T) {
	e, _, ids := newTestEngine(t, "R->P1 R->P2 R->P3 P1->S P2->S P3->S S->T")

	h, err := e.BuildHeatmap(context.Background(), GraphRequest{Symbol: "R"})
	require.NoError(t, err)
	assert.Equal(t, string(HeatLocal), h.Strategy)

	byID := make(map[int64]model.HeatNode)
	for _, n := range h.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, 3, byID[ids["S"]].Count)
	assert.InDelta(t, 1.0, byID[ids["S"]].Heat, 0.01)
	for _, sym := range []string{"P1", "P2", "P3", "T"} {
		assert.Equal(t, 1, byID[ids[sym]].Count, sym)
		assert.InDelta(t, 0.333, byID[ids[sym]].Heat, 0.01, sym)
	}
	assert.True(t, byID[ids["R"]].IsRoot)
}

func TestEngine_BuildHeatmap_Global(t *testing.T) {
	// X and Y call S from outside R's downstream subgraph.
	e, _, ids := newTestEngine(t, "R->P P->S X->S Y->S Y->P", WithHeatStrategy(HeatGlobal))

	h, err := e.BuildHeatmap(context.Background(), GraphRequest{Symbol: "R"})
	require.NoError(t, err)
	assert.Equal(t, string(HeatGlobal), h.Strategy)

	byID := make(map[int64]model.HeatNode)
	for _, n := range h.Nodes {
		byID[n.ID] = n
	}
	require.Len(t, byID, 3)
	assert.Equal(t, 0, byID[ids["R"]].Count)
	assert.Equal(t, 2, byID[ids["P"]].Count)
	assert.Equal(t, 3, byID[ids["S"]].Count)
	assert.InDelta(t, 1.0, byID[ids["S"]].Heat, 0.001)
	assert.InDelta(t, 0.667, byID[ids["P"]].Heat, 0.01)
	assert.Zero(t, byID[ids["R"]].Heat)
}

func TestEngine_BuildHeatmap_SingleNode(t *testing.T) {
	s := memory.New()
	storetest.MustUpsert(t, s, storetest.Entity("Lonely", "l.go"))

	for _, strategy := range []HeatStrategy{HeatLocal, HeatGlobal} {
		h, err := NewEngine(s, WithHeatStrategy(strategy)).BuildHeatmap(context.Background(), GraphRequest{Symbol: "Lonely"})
		require.NoError(t, err)
		require.Len(t, h.Nodes, 1)
		assert.Zero(t, h.Nodes[0].Heat, string(strategy))
		assert.Empty(t, h.Edges)
	}
}

func TestEngine_BuildHeatmap_NotFound(t *testing.T) {
	e, _, _ := newTestEngine(t, "A->B")

	h, err := e.BuildHeatmap(context.Background(), GraphRequest{Symbol: "Nope"})
	require.NoError(t, err)
	assert.Nil(t, h.Root)
	assert.Empty(t, h.Nodes)
	assert.Equal(t, "local", h.Strategy)
}

func TestEngine_StoreFailure(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	loadEdges(t, base, "A->B B->C")

	tests := []struct {
		failOn string
		call   func(e *Engine) error
	}{
		{"FetchEntity", func(e *Engine) error {
			_, err := e.BuildCalleeTree(ctx, TreeRequest{Symbol: "A", Depth: 1})
			return err
		}},
		{"FetchEdgesFrom", func(e *Engine) error {
			_, err := e.BuildCalleeTree(ctx, TreeRequest{Symbol: "A", Depth: 2})
			return err
		}},
		{"FetchEdgesTo", func(e *Engine) error {
			_, err := e.BuildCallGraph(ctx, GraphRequest{Symbol: "B", MaxDepth: 2})
			return err
		}},
		{"FetchEntitiesByID", func(e *Engine) error {
			_, err := e.BuildCallGraph(ctx, GraphRequest{Symbol: "A", MaxDepth: 1})
			return err
		}},
		{"FetchGlobalCallerCounts", func(e *Engine) error {
			_, err := NewEngine(e.store, WithHeatStrategy(HeatGlobal)).BuildHeatmap(ctx, GraphRequest{Symbol: "A"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			e := NewEngine(&failingStore{Store: base, failOn: tt.failOn})
			err := tt.call(e)
			require.Error(t, err)
			assert.ErrorIs(t, err, errStoreDown)
		})
	}
}

func TestEngine_Options(t *testing.T) {
	e := NewEngine(memory.New())
	assert.Equal(t, FetchHops, e.FetchStrategy())
	assert.Equal(t, HeatLocal, e.HeatStrategy())

	e = NewEngine(memory.New(), WithFetchStrategy(FetchStore), WithHeatStrategy(HeatGlobal), WithMaxTreeNodes(0))
	assert.Equal(t, FetchStore, e.FetchStrategy())
	assert.Equal(t, HeatGlobal, e.HeatStrategy())
	assert.Equal(t, DefaultMaxTreeNodes, e.trees.maxNodes)
}
