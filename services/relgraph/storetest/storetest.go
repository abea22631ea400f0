// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storetest holds the behaviour every store.ReadWriter backend must
// share. Each backend package runs it from its own tests:
//
//	func TestStore_Conformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) store.ReadWriter { ... })
//	}
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
)

// Factory opens a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.ReadWriter

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.ReadWriter)
	}{
		{"UpsertEntity_Identity", testUpsertIdentity},
		{"UpsertEntity_UpdatesFields", testUpsertUpdates},
		{"FetchEntity_Filters", testFetchEntityFilters},
		{"FetchEntity_Unknown", testFetchEntityUnknown},
		{"FetchEdges_BatchedAndOrdered", testFetchEdges},
		{"FetchEdges_DuplicateCallSites", testDuplicateCallSites},
		{"FetchEdges_Dangling", testDanglingEdges},
		{"FetchEntitiesByID_SkipsMissing", testFetchEntitiesByID},
		{"FetchGlobalCallerCounts_Distinct", testGlobalCallerCounts},
		{"Expand_MatchesBatchedReads", testExpand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// Entity is a test helper that builds a function entity in project 1.
func Entity(symbol, filename string) model.Entity {
	return model.Entity{
		ProjectID: 1,
		Language:  "go",
		Symbol:    symbol,
		Kind:      model.KindFunction,
		Filename:  filename,
		StartLine: 1,
		EndLine:   10,
	}
}

// MustUpsert inserts e and returns its id.
func MustUpsert(t *testing.T, w store.Writer, e model.Entity) int64 {
	t.Helper()
	id, err := w.UpsertEntity(context.Background(), e)
	require.NoError(t, err)
	require.NotZero(t, id)
	return id
}

// MustLink records caller → callee at line and returns the edge id.
func MustLink(t *testing.T, w store.Writer, caller, callee int64, line int) int64 {
	t.Helper()
	id, err := w.AddRelationship(context.Background(), model.Relationship{
		CallerID: caller,
		CalleeID: callee,
		Line:     line,
	})
	require.NoError(t, err)
	require.NotZero(t, id)
	return id
}

func testUpsertIdentity(t *testing.T, s store.ReadWriter) {
	first := MustUpsert(t, s, Entity("Handle", "a.go"))
	again := MustUpsert(t, s, Entity("Handle", "a.go"))
	other := MustUpsert(t, s, Entity("Handle", "b.go"))

	assert.Equal(t, first, again, "same identity key must keep its id")
	assert.NotEqual(t, first, other)
	assert.Greater(t, other, first, "ids increase with insertion")

	method := Entity("Handle", "a.go")
	method.Kind = model.KindMethod
	assert.NotEqual(t, first, MustUpsert(t, s, method), "kind is part of the identity")
}

func testUpsertUpdates(t *testing.T, s store.ReadWriter) {
	ctx := context.Background()
	e := Entity("Parse", "parse.go")
	id := MustUpsert(t, s, e)

	e.StartLine = 40
	e.EndLine = 90
	e.DocComment = "Parse reads input."
	require.Equal(t, id, MustUpsert(t, s, e))

	got, err := s.FetchEntitiesByID(ctx, []int64{id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 40, got[0].StartLine)
	assert.Equal(t, 90, got[0].EndLine)
	assert.Equal(t, "Parse reads input.", got[0].DocComment)
}

func testFetchEntityFilters(t *testing.T, s store.ReadWriter) {
	ctx := context.Background()
	a := MustUpsert(t, s, Entity("Run", "a.go"))
	b := MustUpsert(t, s, Entity("Run", "b.go"))
	other := Entity("Run", "a.go")
	other.ProjectID = 2
	c := MustUpsert(t, s, other)
	MustUpsert(t, s, Entity("Runner", "a.go"))

	tests := []struct {
		name  string
		query store.EntityQuery
		want  []int64
	}{
		{"symbol only", store.EntityQuery{Symbol: "Run"}, []int64{a, b, c}},
		{"project", store.EntityQuery{Symbol: "Run", ProjectID: 1}, []int64{a, b}},
		{"filename", store.EntityQuery{Symbol: "Run", Filename: "a.go"}, []int64{a, c}},
		{"project and filename", store.EntityQuery{Symbol: "Run", ProjectID: 2, Filename: "a.go"}, []int64{c}},
		{"kind mismatch", store.EntityQuery{Symbol: "Run", Kind: model.KindClass}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FetchEntity(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func testFetchEntityUnknown(t *testing.T, s store.ReadWriter) {
	MustUpsert(t, s, Entity("Known", "k.go"))

	got, err := s.FetchEntity(context.Background(), store.EntityQuery{Symbol: "Unknown"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testFetchEdges(t *testing.T, s store.ReadWriter) {
	ctx := context.Background()
	a := MustUpsert(t, s, Entity("A", "x.go"))
	b := MustUpsert(t, s, Entity("B", "x.go"))
	c := MustUpsert(t, s, Entity("C", "x.go"))
	d := MustUpsert(t, s, Entity("D", "x.go"))

	ab := MustLink(t, s, a, b, 3)
	cd := MustLink(t, s, c, d, 7)
	ac := MustLink(t, s, a, c, 4)
	bd := MustLink(t, s, b, d, 9)

	from, err := s.FetchEdgesFrom(ctx, []int64{c, a, a})
	require.NoError(t, err)
	assert.Equal(t, []int64{ab, cd, ac}, relIDs(from), "one call for the whole frontier, ordered by id")

	to, err := s.FetchEdgesTo(ctx, []int64{d})
	require.NoError(t, err)
	assert.Equal(t, []int64{cd, bd}, relIDs(to))
	assert.Equal(t, c, to[0].CallerID)
	assert.Equal(t, 7, to[0].Line)

	none, err := s.FetchEdgesFrom(ctx, []int64{d})
	require.NoError(t, err)
	assert.Empty(t, none)

	empty, err := s.FetchEdgesTo(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testDuplicateCallSites(t *testing.T, s store.ReadWriter) {
	a := MustUpsert(t, s, Entity("A", "x.go"))
	b := MustUpsert(t, s, Entity("B", "x.go"))
	MustLink(t, s, a, b, 10)
	MustLink(t, s, a, b, 20)

	from, err := s.FetchEdgesFrom(context.Background(), []int64{a})
	require.NoError(t, err)
	require.Len(t, from, 2, "call sites on the same pair are not deduplicated")
	assert.Equal(t, 10, from[0].Line)
	assert.Equal(t, 20, from[1].Line)
}

func testDanglingEdges(t *testing.T, s store.ReadWriter) {
	ctx := context.Background()
	a := MustUpsert(t, s, Entity("A", "x.go"))
	const ghost = 9999
	MustLink(t, s, a, ghost, 5)

	from, err := s.FetchEdgesFrom(ctx, []int64{a})
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, int64(ghost), from[0].CalleeID)

	ents, err := s.FetchEntitiesByID(ctx, []int64{ghost})
	require.NoError(t, err)
	assert.Empty(t, ents)
}

func testFetchEntitiesByID(t *testing.T, s store.ReadWriter) {
	a := MustUpsert(t, s, Entity("A", "x.go"))
	b := MustUpsert(t, s, Entity("B", "x.go"))

	got, err := s.FetchEntitiesByID(context.Background(), []int64{b, 424242, a, b})
	require.NoError(t, err)
	assert.Equal(t, []int64{a, b}, ids(got))
	assert.Equal(t, "A", got[0].Symbol)
}

func testGlobalCallerCounts(t *testing.T, s store.ReadWriter) {
	a := MustUpsert(t, s, Entity("A", "x.go"))
	b := MustUpsert(t, s, Entity("B", "x.go"))
	c := MustUpsert(t, s, Entity("C", "x.go"))
	MustLink(t, s, a, c, 1)
	MustLink(t, s, a, c, 2)
	MustLink(t, s, b, c, 3)
	MustLink(t, s, a, b, 4)

	counts, err := s.FetchGlobalCallerCounts(context.Background(), []int64{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{a: 0, b: 1, c: 2}, counts)
}

func testExpand(t *testing.T, s store.ReadWriter) {
	exp, ok := s.(store.Expander)
	if !ok {
		t.Skip("store does not implement store.Expander")
	}
	ctx := context.Background()

	// a → b → c → a, plus b → d twice.
	a := MustUpsert(t, s, Entity("A", "x.go"))
	b := MustUpsert(t, s, Entity("B", "x.go"))
	c := MustUpsert(t, s, Entity("C", "x.go"))
	d := MustUpsert(t, s, Entity("D", "x.go"))
	ab := MustLink(t, s, a, b, 1)
	bc := MustLink(t, s, b, c, 2)
	ca := MustLink(t, s, c, a, 3)
	bd1 := MustLink(t, s, b, d, 4)
	bd2 := MustLink(t, s, b, d, 5)

	t.Run("callees", func(t *testing.T) {
		got, err := exp.Expand(ctx, a, model.Callees, 3)
		require.NoError(t, err)
		assert.Equal(t, []depthID{{1, ab}, {2, bc}, {2, bd1}, {2, bd2}, {3, ca}}, depthIDs(got))
	})

	t.Run("callers", func(t *testing.T) {
		got, err := exp.Expand(ctx, d, model.Callers, 2)
		require.NoError(t, err)
		assert.Equal(t, []depthID{{1, bd1}, {1, bd2}, {2, ab}}, depthIDs(got))
	})

	t.Run("depth one", func(t *testing.T) {
		got, err := exp.Expand(ctx, b, model.Callees, 1)
		require.NoError(t, err)
		assert.Equal(t, []depthID{{1, bc}, {1, bd1}, {1, bd2}}, depthIDs(got))
	})

	t.Run("cycle bounded", func(t *testing.T) {
		got, err := exp.Expand(ctx, a, model.Callees, 50)
		require.NoError(t, err)
		assert.Len(t, got, 5, "each edge appears once at its minimum depth")
	})
}

type depthID struct {
	depth int
	id    int64
}

func depthIDs(edges []model.DepthEdge) []depthID {
	out := make([]depthID, len(edges))
	for i, e := range edges {
		out[i] = depthID{e.Depth, e.ID}
	}
	return out
}

func ids(ents []model.Entity) []int64 {
	if len(ents) == 0 {
		return nil
	}
	out := make([]int64, len(ents))
	for i, e := range ents {
		out[i] = e.ID
	}
	return out
}

func relIDs(rels []model.Relationship) []int64 {
	out := make([]int64, len(rels))
	for i, r := range rels {
		out[i] = r.ID
	}
	return out
}
