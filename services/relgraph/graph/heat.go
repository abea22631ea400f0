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

// HeatStrategy selects how node connectivity is counted.
//
// One strategy is fixed per engine; every heat-producing operation uses it.
type HeatStrategy string

const (
	// HeatLocal counts edge traversals within the returned subgraph,
	// starting the root at 1.
	HeatLocal HeatStrategy = "local"

	// HeatGlobal counts distinct callers recorded anywhere in the store.
	HeatGlobal HeatStrategy = "global"
)

// ParseHeatStrategy parses a configured strategy name. Empty means HeatLocal.
func ParseHeatStrategy(s string) (HeatStrategy, error) {
	switch HeatStrategy(s) {
	case "", HeatLocal:
		return HeatLocal, nil
	case HeatGlobal:
		return HeatGlobal, nil
	default:
		return "", fmt.Errorf("%w: heat strategy %q", ErrUnknownStrategy, s)
	}
}

// HeatScorer converts connectivity into [0,1] scores.
type HeatScorer struct {
	strategy HeatStrategy
	store    store.Store
}

// NewHeatScorer creates a scorer. s is only read by HeatGlobal.
func NewHeatScorer(strategy HeatStrategy, s store.Store) *HeatScorer {
	if strategy == "" {
		strategy = HeatLocal
	}
	return &HeatScorer{strategy: strategy, store: s}
}

// Strategy returns the configured strategy.
func (h *HeatScorer) Strategy() HeatStrategy {
	return h.strategy
}

// Score returns raw counts and normalized heat for every node in g.
//
// Description:
//
//	Local: the root starts at 1; the subgraph is walked breadth-first from
//	the root and every edge traversal increments its target's count.
//	Global: each node's count is its number of distinct callers in the
//	store. Either way heat = count / max(count). When the maximum is 0, or
//	the graph has no edges, every heat is 0.
//
// Outputs:
//
//	map[int64]int - Raw count per node id.
//	map[int64]float64 - Heat per node id, each in [0,1].
//	error - Wrapped store failure (HeatGlobal only).
func (h *HeatScorer) Score(ctx context.Context, g *model.GraphResult) (map[int64]int, map[int64]float64, error) {
	ids := make([]int64, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}

	var counts map[int64]int
	switch h.strategy {
	case HeatGlobal:
		var err error
		counts, err = h.store.FetchGlobalCallerCounts(ctx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch caller counts: %w", err)
		}
	default:
		var root int64
		if g.Root != nil {
			root = *g.Root
		}
		counts = localCounts(root, g.Edges)
	}

	maxCount := 0
	for _, id := range ids {
		if counts[id] > maxCount {
			maxCount = counts[id]
		}
	}

	heat := make(map[int64]float64, len(ids))
	for _, id := range ids {
		if maxCount == 0 || len(g.Edges) == 0 {
			heat[id] = 0
			continue
		}
		heat[id] = float64(counts[id]) / float64(maxCount)
	}
	return counts, heat, nil
}

func localCounts(root int64, edges []model.GraphEdge) map[int64]int {
	out := make(map[int64][]int64)
	for _, e := range edges {
		out[e.From] = append(out[e.From], e.To)
	}

	counts := map[int64]int{root: 1}
	visited := map[int64]bool{root: true}
	queue := []int64{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range out[id] {
			counts[next]++
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return counts
}
