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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
)

func edge(from, to int64) model.GraphEdge {
	return model.GraphEdge{From: from, To: to, CalleeDepth: model.IntPtr(1)}
}

func TestLocalCounts(t *testing.T) {
	tests := []struct {
		name  string
		edges []model.GraphEdge
		want  map[int64]int
	}{
		{
			name: "no edges",
			want: map[int64]int{1: 1},
		},
		{
			name:  "back edge to root",
			edges: []model.GraphEdge{edge(1, 2), edge(2, 1)},
			want:  map[int64]int{1: 2, 2: 1},
		},
		{
			name:  "self loop",
			edges: []model.GraphEdge{edge(1, 2), edge(2, 2)},
			want:  map[int64]int{1: 1, 2: 2},
		},
		{
			name:  "duplicate call sites count twice",
			edges: []model.GraphEdge{edge(1, 2), {From: 1, To: 2, Line: 9}},
			want:  map[int64]int{1: 1, 2: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, localCounts(1, tt.edges))
		})
	}
}

func TestHeatScorer_Score_Bounds(t *testing.T) {
	root := int64(1)
	g := &model.GraphResult{
		Root:  &root,
		Nodes: []model.GraphNode{{ID: 1}, {ID: 2}, {ID: 3}},
		Edges: []model.GraphEdge{edge(1, 2), edge(1, 3), edge(2, 3), edge(3, 1)},
	}

	counts, heat, err := NewHeatScorer(HeatLocal, nil).Score(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 2: 1, 3: 2}, counts)
	for id, h := range heat {
		assert.GreaterOrEqual(t, h, 0.0, "node %d", id)
		assert.LessOrEqual(t, h, 1.0, "node %d", id)
	}
	assert.InDelta(t, 0.5, heat[2], 0.001)
}

func TestParseHeatStrategy(t *testing.T) {
	s, err := ParseHeatStrategy("")
	require.NoError(t, err)
	assert.Equal(t, HeatLocal, s)

	s, err = ParseHeatStrategy("global")
	require.NoError(t, err)
	assert.Equal(t, HeatGlobal, s)

	_, err = ParseHeatStrategy("pagerank")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
