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

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
)

// FetchStrategy selects how multi-hop expansion is executed.
type FetchStrategy string

const (
	// FetchHops expands hop by hop with one batched store call per hop.
	FetchHops FetchStrategy = "hops"

	// FetchStore delegates the whole expansion to store.Expander when the
	// store implements it, and falls back to FetchHops otherwise.
	FetchStore FetchStrategy = "store"
)

// ParseFetchStrategy parses a configured strategy name. Empty means FetchHops.
func ParseFetchStrategy(s string) (FetchStrategy, error) {
	switch FetchStrategy(s) {
	case "", FetchHops:
		return FetchHops, nil
	case FetchStore:
		return FetchStore, nil
	default:
		return "", fmt.Errorf("%w: fetch strategy %q", ErrUnknownStrategy, s)
	}
}

// FetchRequest describes one single-direction expansion.
type FetchRequest struct {
	RootID    int64
	Direction model.Direction

	// MaxDepth is the hop bound, already normalized (>= 1).
	MaxDepth int
}

// Fetcher expands the call relation outward from a root.
//
// Description:
//
//	Every returned edge is tagged with the minimum hop count at which the
//	expansion reached it, and edges come back ordered by (Depth, ID). A node
//	reachable along several paths is expanded once, at its minimum depth,
//	so cycles terminate without revisiting and the depth tags equal those of
//	a per-path enumeration.
//
// Thread Safety: Safe for concurrent use.
type Fetcher struct {
	store    store.Store
	strategy FetchStrategy
}

// NewFetcher creates a fetcher over s.
func NewFetcher(s store.Store, strategy FetchStrategy) *Fetcher {
	if strategy == "" {
		strategy = FetchHops
	}
	return &Fetcher{store: s, strategy: strategy}
}

// Strategy returns the strategy this fetcher was configured with.
func (f *Fetcher) Strategy() FetchStrategy {
	return f.strategy
}

// Fetch runs one single-direction expansion.
//
// Outputs:
//
//	[]model.DepthEdge - Reached edges ordered by (Depth, ID). Never nil.
//	error - ErrInvalidDepth, ErrInvalidDirection, or a wrapped store failure.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) ([]model.DepthEdge, error) {
	if req.MaxDepth < 1 {
		return nil, fmt.Errorf("%w: fetch depth must be >= 1, got %d", ErrInvalidDepth, req.MaxDepth)
	}
	if req.Direction != model.Callees && req.Direction != model.Callers {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDirection, req.Direction)
	}

	if f.strategy == FetchStore {
		if exp, ok := f.store.(store.Expander); ok {
			edges, err := exp.Expand(ctx, req.RootID, req.Direction, req.MaxDepth)
			if err != nil {
				return nil, fmt.Errorf("expand %s from %d: %w", req.Direction, req.RootID, err)
			}
			hops := 0
			if n := len(edges); n > 0 {
				hops = edges[n-1].Depth
			}
			recordFetchMetrics(ctx, req.Direction, FetchStore, hops, len(edges))
			return edges, nil
		}
	}
	return f.fetchHops(ctx, req)
}

func (f *Fetcher) fetchHops(ctx context.Context, req FetchRequest) ([]model.DepthEdge, error) {
	result := make([]model.DepthEdge, 0)
	visited := map[int64]struct{}{req.RootID: {}}
	frontier := []int64{req.RootID}

	hop := 0
	for len(frontier) > 0 && hop < req.MaxDepth {
		hop++

		var (
			edges []model.Relationship
			err   error
		)
		if req.Direction == model.Callers {
			edges, err = f.store.FetchEdgesTo(ctx, frontier)
		} else {
			edges, err = f.store.FetchEdgesFrom(ctx, frontier)
		}
		if err != nil {
			return nil, fmt.Errorf("fetch %s hop %d: %w", req.Direction, hop, err)
		}
		store.SortRelationships(edges)

		next := make([]int64, 0, len(edges))
		for _, r := range edges {
			result = append(result, model.DepthEdge{Relationship: r, Depth: hop})
			id := req.Direction.Next(r)
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			next = append(next, id)
		}
		frontier = next
	}

	recordFetchMetrics(ctx, req.Direction, FetchHops, hop, len(result))
	return result, nil
}

// FetchBoth runs a callee and a caller expansion from rootID concurrently and
// unions them into graph edges.
//
// Description:
//
//	Edges are unioned by (caller, callee, line). An edge reached in both
//	directions carries both depths, each the minimum seen in that direction.
//	Order: callee-direction edges in fetch order, then caller-only edges in
//	fetch order.
//
// Outputs:
//
//	[]model.GraphEdge - Never nil; every edge has at least one depth set.
//	error - The first failure of either expansion.
func (f *Fetcher) FetchBoth(ctx context.Context, rootID int64, calleeDepth, callerDepth int) ([]model.GraphEdge, error) {
	var callees, callers []model.DepthEdge

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		callees, err = f.Fetch(gctx, FetchRequest{RootID: rootID, Direction: model.Callees, MaxDepth: calleeDepth})
		return err
	})
	g.Go(func() error {
		var err error
		callers, err = f.Fetch(gctx, FetchRequest{RootID: rootID, Direction: model.Callers, MaxDepth: callerDepth})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	edges := make([]model.GraphEdge, 0, len(callees)+len(callers))
	index := make(map[model.EdgeKey]int, len(callees)+len(callers))
	add := func(e model.DepthEdge, dir model.Direction) {
		key := e.Key()
		i, ok := index[key]
		if !ok {
			i = len(edges)
			index[key] = i
			edges = append(edges, model.GraphEdge{From: e.CallerID, To: e.CalleeID, Line: e.Line})
		}
		slot := &edges[i].CalleeDepth
		if dir == model.Callers {
			slot = &edges[i].CallerDepth
		}
		if *slot == nil || e.Depth < **slot {
			*slot = model.IntPtr(e.Depth)
		}
	}
	for _, e := range callees {
		add(e, model.Callees)
	}
	for _, e := range callers {
		add(e, model.Callers)
	}
	return edges, nil
}

// adjacency returns, in order, the edges leaving each node in the given
// direction, keyed by the near endpoint.
func adjacency(edges []model.DepthEdge, dir model.Direction) map[int64][]model.DepthEdge {
	adj := make(map[int64][]model.DepthEdge)
	for _, e := range edges {
		near := e.CallerID
		if dir == model.Callers {
			near = e.CalleeID
		}
		adj[near] = append(adj[near], e)
	}
	return adj
}
