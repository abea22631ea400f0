// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package relgraph serves the relationship graph engine: caller and callee
// trees, bidirectional call graphs and heat maps over a call-graph store.
//
// Service owns the store and the engine and turns raw queries into
// normalized, depth-clamped engine requests. Handlers expose it over HTTP;
// package mcp exposes it over the Model Context Protocol.
package relgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/AleutianAI/relgraph/services/relgraph/config"
	"github.com/AleutianAI/relgraph/services/relgraph/fixture"
	"github.com/AleutianAI/relgraph/services/relgraph/graph"
	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
	badgerstore "github.com/AleutianAI/relgraph/services/relgraph/store/badger"
	"github.com/AleutianAI/relgraph/services/relgraph/store/memory"
	"github.com/AleutianAI/relgraph/services/relgraph/store/sqlite"
)

// ServiceVersion is the relgraph service version.
const ServiceVersion = "0.1.0"

// Service answers graph queries against one store.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	state    atomic.Pointer[backendState]
	backend  string
	maxDepth int
	options  []graph.Option
	logger   *slog.Logger
}

// backendState is swapped as a unit by Reload.
type backendState struct {
	store  store.ReadWriter
	engine *graph.Engine
}

// OpenStore opens the backend named by cfg. An empty path keeps badger and
// sqlite in memory.
func OpenStore(cfg config.StoreConfig, logger *slog.Logger) (store.ReadWriter, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return memory.New(), nil
	case config.BackendBadger:
		bcfg := badgerstore.InMemoryConfig()
		if cfg.Path != "" {
			bcfg = badgerstore.DefaultConfig(cfg.Path)
		}
		if logger != nil {
			bcfg.Logger = logger.With(slog.String("component", "badger"))
		}
		return badgerstore.Open(bcfg)
	case config.BackendSQLite:
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// NewService builds a service over an already opened store. The service
// takes ownership of s and closes it in Close.
func NewService(s store.ReadWriter, backend string, cfg config.EngineConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fetch, err := graph.ParseFetchStrategy(cfg.FetchStrategy)
	if err != nil {
		return nil, err
	}
	heat, err := graph.ParseHeatStrategy(cfg.HeatStrategy)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		backend:  backend,
		maxDepth: cfg.MaxDepth,
		options: []graph.Option{
			graph.WithFetchStrategy(fetch),
			graph.WithHeatStrategy(heat),
			graph.WithMaxTreeNodes(cfg.MaxTreeNodes),
			graph.WithLogger(logger),
		},
		logger: logger.With(slog.String("component", "relgraph.service")),
	}
	svc.state.Store(&backendState{store: s, engine: graph.NewEngine(s, svc.options...)})
	return svc, nil
}

func (s *Service) current() *backendState {
	return s.state.Load()
}

// OpenService opens the configured store, loads the configured fixture and
// builds the service. A fixture aimed at a persistent store is rejected with
// ErrFixtureOnPersistentStore.
func OpenService(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Service, error) {
	if cfg.Store.Fixture != "" && cfg.Store.Persistent() {
		return nil, fmt.Errorf("%w: %s store at %s", ErrFixtureOnPersistentStore, cfg.Store.Backend, cfg.Store.Path)
	}
	s, err := OpenStore(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	svc, err := NewService(s, cfg.Store.Backend, cfg.Engine, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	if cfg.Store.Fixture != "" {
		if _, err := svc.Load(ctx, cfg.Store.Fixture); err != nil {
			svc.Close()
			return nil, err
		}
	}
	return svc, nil
}

// Load writes a fixture file into the store.
func (s *Service) Load(ctx context.Context, path string) (*fixture.Result, error) {
	res, err := fixture.LoadFile(ctx, s.current().store, path)
	if err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", path, err)
	}
	s.logger.Info("fixture loaded",
		slog.String("path", path),
		slog.Int("entities", res.Entities),
		slog.Int("relationships", res.Relationships),
	)
	return res, nil
}

// Reload replaces the contents of a memory-backed service with a freshly
// loaded fixture. Requests in flight finish against the previous contents.
func (s *Service) Reload(ctx context.Context, path string) (*fixture.Result, error) {
	if s.backend != "" && s.backend != config.BackendMemory {
		return nil, fmt.Errorf("%w: %s", ErrReloadUnsupported, s.backend)
	}
	next := memory.New()
	res, err := fixture.LoadFile(ctx, next, path)
	if err != nil {
		return nil, fmt.Errorf("reload fixture %s: %w", path, err)
	}
	s.state.Store(&backendState{store: next, engine: graph.NewEngine(next, s.options...)})
	s.logger.Info("fixture reloaded",
		slog.String("path", path),
		slog.Int("entities", res.Entities),
		slog.Int("relationships", res.Relationships),
	)
	return res, nil
}

// Engine returns the current engine.
func (s *Service) Engine() *graph.Engine {
	return s.current().engine
}

// Backend returns the configured store backend name.
func (s *Service) Backend() string {
	return s.backend
}

// Ready probes the store with a lookup that matches nothing.
func (s *Service) Ready(ctx context.Context) error {
	if _, err := s.current().store.FetchEntity(ctx, store.EntityQuery{Symbol: ""}); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the current store.
func (s *Service) Close() error {
	return s.current().store.Close()
}

// CallerTree returns the caller tree for q.
func (s *Service) CallerTree(ctx context.Context, q TreeQuery) (*model.TreeNode, error) {
	req, err := s.treeRequest(q)
	if err != nil {
		return nil, err
	}
	tree, err := s.current().engine.BuildCallerTree(ctx, req)
	return tree, storeError(err)
}

// CalleeTree returns the callee tree for q.
func (s *Service) CalleeTree(ctx context.Context, q TreeQuery) (*model.TreeNode, error) {
	req, err := s.treeRequest(q)
	if err != nil {
		return nil, err
	}
	tree, err := s.current().engine.BuildCalleeTree(ctx, req)
	return tree, storeError(err)
}

// CallGraph returns the bidirectional call graph for q.
func (s *Service) CallGraph(ctx context.Context, q GraphQuery) (*model.GraphResult, error) {
	req, err := s.graphRequest(q)
	if err != nil {
		return nil, err
	}
	g, err := s.current().engine.BuildCallGraph(ctx, req)
	return g, storeError(err)
}

// Heatmap returns the scored downstream subgraph for q.
func (s *Service) Heatmap(ctx context.Context, q GraphQuery) (*model.HeatmapResult, error) {
	req, err := s.graphRequest(q)
	if err != nil {
		return nil, err
	}
	h, err := s.current().engine.BuildHeatmap(ctx, req)
	return h, storeError(err)
}

func (s *Service) treeRequest(q TreeQuery) (graph.TreeRequest, error) {
	if err := q.Validate(); err != nil {
		return graph.TreeRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	depth := graph.DefaultTreeDepth
	if q.Depth != nil {
		depth = *q.Depth
	}
	req, err := graph.TreeRequest{
		Symbol:    q.Symbol,
		ProjectID: q.ProjectID,
		Filename:  q.Filename,
		Depth:     depth,
	}.Normalize()
	if err != nil {
		return req, err
	}
	req.Depth = graph.ClampDepth(req.Depth, s.maxDepth)
	return req, nil
}

func (s *Service) graphRequest(q GraphQuery) (graph.GraphRequest, error) {
	if err := q.Validate(); err != nil {
		return graph.GraphRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req, err := graph.GraphRequest{
		Symbol:      q.Symbol,
		ProjectID:   q.ProjectID,
		Filename:    q.Filename,
		MaxDepth:    q.MaxDepth,
		CallerDepth: q.CallerDepth,
	}.Normalize()
	if err != nil {
		return req, err
	}
	req.MaxDepth = graph.ClampDepth(req.MaxDepth, s.maxDepth)
	req.CallerDepth = graph.ClampDepth(req.CallerDepth, s.maxDepth)
	return req, nil
}

// storeError tags engine failures that are not request errors as store
// failures.
func storeError(err error) error {
	if err == nil || errors.Is(err, graph.ErrInvalidDepth) || errors.Is(err, graph.ErrEmptySymbol) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
