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
	"log/slog"
	"time"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	// FetchStrategy selects hop-by-hop or store-side expansion.
	FetchStrategy FetchStrategy

	// HeatStrategy is used by every heat-producing operation.
	HeatStrategy HeatStrategy

	// MaxTreeNodes bounds materialized trees.
	MaxTreeNodes int

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultEngineOptions returns the defaults: hop-by-hop fetching, local heat,
// DefaultMaxTreeNodes.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		FetchStrategy: FetchHops,
		HeatStrategy:  HeatLocal,
		MaxTreeNodes:  DefaultMaxTreeNodes,
	}
}

// Option is a functional option for configuring an Engine.
type Option func(*EngineOptions)

// WithFetchStrategy sets the expansion strategy.
func WithFetchStrategy(s FetchStrategy) Option {
	return func(o *EngineOptions) {
		o.FetchStrategy = s
	}
}

// WithHeatStrategy sets the heat strategy.
func WithHeatStrategy(s HeatStrategy) Option {
	return func(o *EngineOptions) {
		o.HeatStrategy = s
	}
}

// WithMaxTreeNodes sets the tree node budget.
//
// If n <= 0, uses default (50000).
func WithMaxTreeNodes(n int) Option {
	return func(o *EngineOptions) {
		if n <= 0 {
			n = DefaultMaxTreeNodes
		}
		o.MaxTreeNodes = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *EngineOptions) {
		o.Logger = l
	}
}

// Engine is the query surface of the relationship graph engine.
//
// Thread Safety: Safe for concurrent use. Holds no per-request state.
type Engine struct {
	store   store.Store
	fetcher *Fetcher
	trees   *TreeBuilder
	merger  *Merger
	heat    *HeatScorer
	logger  *slog.Logger
}

// NewEngine creates an engine over s.
func NewEngine(s store.Store, opts ...Option) *Engine {
	o := DefaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	fetcher := NewFetcher(s, o.FetchStrategy)
	return &Engine{
		store:   s,
		fetcher: fetcher,
		trees:   NewTreeBuilder(fetcher, s, o.MaxTreeNodes),
		merger:  NewMerger(fetcher, s),
		heat:    NewHeatScorer(o.HeatStrategy, s),
		logger:  o.Logger.With(slog.String("component", "relgraph.engine")),
	}
}

// FetchStrategy returns the configured expansion strategy.
func (e *Engine) FetchStrategy() FetchStrategy {
	return e.fetcher.Strategy()
}

// HeatStrategy returns the configured heat strategy.
func (e *Engine) HeatStrategy() HeatStrategy {
	return e.heat.Strategy()
}

// BuildCallerTree returns the tree of functions calling req.Symbol.
//
// Outputs:
//
//	*model.TreeNode - The tree, or model.NotFoundTree when the symbol does
//	  not resolve. Children are emitted under "callers".
//	error - ErrEmptySymbol, ErrInvalidDepth, or a wrapped store failure.
func (e *Engine) BuildCallerTree(ctx context.Context, req TreeRequest) (*model.TreeNode, error) {
	return e.buildTree(ctx, "BuildCallerTree", req, model.Callers)
}

// BuildCalleeTree returns the tree of functions called by req.Symbol.
//
// Outputs:
//
//	*model.TreeNode - The tree, or model.NotFoundTree when the symbol does
//	  not resolve. Children are emitted under "children".
//	error - ErrEmptySymbol, ErrInvalidDepth, or a wrapped store failure.
func (e *Engine) BuildCalleeTree(ctx context.Context, req TreeRequest) (*model.TreeNode, error) {
	return e.buildTree(ctx, "BuildCalleeTree", req, model.Callees)
}

func (e *Engine) buildTree(ctx context.Context, op string, req TreeRequest, dir model.Direction) (tree *model.TreeNode, err error) {
	req, err = req.Normalize()
	if err != nil {
		return nil, err
	}

	ctx, span := startQuerySpan(ctx, op, req.Symbol, req.Depth)
	start := time.Now()
	outcome, nodes := outcomeOK, 0
	defer func() {
		if err != nil {
			outcome = outcomeError
		}
		recordQueryMetrics(ctx, op, outcome, time.Since(start))
		endQuerySpan(span, outcome, nodes, 0, err)
	}()

	root, ok, err := e.resolve(ctx, req.Symbol, req.ProjectID, req.Filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		outcome = outcomeNotFound
		return model.NotFoundTree(req.Symbol, dir), nil
	}

	tree, err = e.trees.Build(ctx, root, dir, req.Depth)
	if err != nil {
		return nil, fmt.Errorf("build %s tree for %q: %w", dir, req.Symbol, err)
	}
	nodes = tree.Size()
	e.logger.Debug("tree built",
		slog.String("op", op),
		slog.String("symbol", req.Symbol),
		slog.Int64("root_id", root.ID),
		slog.Int("depth", req.Depth),
		slog.Int("nodes", nodes),
		slog.Bool("truncated", tree.Truncated),
	)
	return tree, nil
}

// BuildCallGraph returns the bidirectional graph around req.Symbol: callees
// up to req.MaxDepth hops and callers up to req.CallerDepth hops.
//
// Outputs:
//
//	*model.GraphResult - The graph, or model.EmptyGraph when the symbol does
//	  not resolve.
//	error - ErrEmptySymbol, ErrInvalidDepth, or a wrapped store failure.
func (e *Engine) BuildCallGraph(ctx context.Context, req GraphRequest) (g *model.GraphResult, err error) {
	const op = "BuildCallGraph"
	req, err = req.Normalize()
	if err != nil {
		return nil, err
	}

	ctx, span := startQuerySpan(ctx, op, req.Symbol, req.MaxDepth)
	start := time.Now()
	outcome := outcomeOK
	defer func() {
		if err != nil {
			outcome = outcomeError
		}
		recordQueryMetrics(ctx, op, outcome, time.Since(start))
		if g != nil {
			endQuerySpan(span, outcome, len(g.Nodes), len(g.Edges), err)
		} else {
			endQuerySpan(span, outcome, 0, 0, err)
		}
	}()

	root, ok, err := e.resolve(ctx, req.Symbol, req.ProjectID, req.Filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		outcome = outcomeNotFound
		return model.EmptyGraph(), nil
	}

	g, err = e.merger.Merge(ctx, root, req.MaxDepth, req.CallerDepth)
	if err != nil {
		return nil, fmt.Errorf("build call graph for %q: %w", req.Symbol, err)
	}
	e.logger.Debug("call graph built",
		slog.String("symbol", req.Symbol),
		slog.Int64("root_id", root.ID),
		slog.Int("callee_depth", req.MaxDepth),
		slog.Int("caller_depth", req.CallerDepth),
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("edges", len(g.Edges)),
	)
	return g, nil
}

// BuildHeatmap returns the downstream (callee) subgraph of req.Symbol up to
// req.MaxDepth hops, each node scored with the engine's heat strategy.
// req.CallerDepth is ignored.
//
// Outputs:
//
//	*model.HeatmapResult - The scored subgraph, or model.EmptyHeatmap when
//	  the symbol does not resolve.
//	error - ErrEmptySymbol, ErrInvalidDepth, or a wrapped store failure.
func (e *Engine) BuildHeatmap(ctx context.Context, req GraphRequest) (h *model.HeatmapResult, err error) {
	const op = "BuildHeatmap"
	req, err = req.Normalize()
	if err != nil {
		return nil, err
	}

	ctx, span := startQuerySpan(ctx, op, req.Symbol, req.MaxDepth)
	start := time.Now()
	outcome := outcomeOK
	defer func() {
		if err != nil {
			outcome = outcomeError
		}
		recordQueryMetrics(ctx, op, outcome, time.Since(start))
		if h != nil {
			endQuerySpan(span, outcome, len(h.Nodes), len(h.Edges), err)
		} else {
			endQuerySpan(span, outcome, 0, 0, err)
		}
	}()

	strategy := string(e.heat.Strategy())
	root, ok, err := e.resolve(ctx, req.Symbol, req.ProjectID, req.Filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		outcome = outcomeNotFound
		return model.EmptyHeatmap(strategy), nil
	}

	g, err := e.merger.Downstream(ctx, root, req.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("build heatmap for %q: %w", req.Symbol, err)
	}
	counts, heat, err := e.heat.Score(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("score heatmap for %q: %w", req.Symbol, err)
	}

	h = &model.HeatmapResult{
		Root:     g.Root,
		Strategy: strategy,
		Nodes:    make([]model.HeatNode, len(g.Nodes)),
		Edges:    g.Edges,
	}
	for i, n := range g.Nodes {
		h.Nodes[i] = model.HeatNode{GraphNode: n, Count: counts[n.ID], Heat: heat[n.ID]}
	}
	return h, nil
}

// resolve returns the lowest-id entity matching the symbol and filters.
func (e *Engine) resolve(ctx context.Context, symbol string, projectID int64, filename string) (model.Entity, bool, error) {
	ents, err := e.store.FetchEntity(ctx, store.EntityQuery{
		Symbol:    symbol,
		ProjectID: projectID,
		Filename:  filename,
	})
	if err != nil {
		return model.Entity{}, false, fmt.Errorf("resolve %q: %w", symbol, err)
	}
	if len(ents) == 0 {
		return model.Entity{}, false, nil
	}
	if len(ents) > 1 {
		e.logger.Debug("ambiguous symbol, using first match",
			slog.String("symbol", symbol),
			slog.Int("matches", len(ents)),
			slog.Int64("root_id", ents[0].ID),
		)
	}
	return ents[0], true, nil
}
