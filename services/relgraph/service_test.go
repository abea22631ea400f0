// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relgraph

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relgraph/services/relgraph/config"
	"github.com/AleutianAI/relgraph/services/relgraph/graph"
	"github.com/AleutianAI/relgraph/services/relgraph/store/memory"
)

func TestOpenStore_Backends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"memory", config.StoreConfig{Backend: config.BackendMemory}},
		{"default", config.StoreConfig{}},
		{"badger in memory", config.StoreConfig{Backend: config.BackendBadger}},
		{"badger on disk", config.StoreConfig{Backend: config.BackendBadger, Path: filepath.Join(dir, "badger")}},
		{"sqlite in memory", config.StoreConfig{Backend: config.BackendSQLite}},
		{"sqlite on disk", config.StoreConfig{Backend: config.BackendSQLite, Path: filepath.Join(dir, "rg.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenStore(tt.cfg, quietLogger)
			require.NoError(t, err)
			require.NoError(t, s.Close())
		})
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, err := OpenStore(config.StoreConfig{Backend: "neo4j"}, nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestNewService_BadStrategy(t *testing.T) {
	cfg := config.DefaultConfig().Engine
	cfg.FetchStrategy = "teleport"
	_, err := NewService(memory.New(), "memory", cfg, nil)
	assert.ErrorIs(t, err, graph.ErrUnknownStrategy)

	cfg = config.DefaultConfig().Engine
	cfg.HeatStrategy = "pagerank"
	_, err = NewService(memory.New(), "memory", cfg, nil)
	assert.ErrorIs(t, err, graph.ErrUnknownStrategy)
}

func TestOpenService_MissingFixture(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Fixture = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := OpenService(t.Context(), cfg, quietLogger)
	assert.Error(t, err)
}

func TestOpenService_PersistentStoreKeepsEdges(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Store = config.StoreConfig{Backend: backend, Path: filepath.Join(t.TempDir(), "rg")}

			svc, err := OpenService(t.Context(), cfg, quietLogger)
			require.NoError(t, err)
			_, err = svc.Load(t.Context(), sampleFixture)
			require.NoError(t, err)
			require.NoError(t, svc.Close())

			withFixture := cfg
			withFixture.Store.Fixture = sampleFixture
			for range 2 {
				_, err = OpenService(t.Context(), withFixture, quietLogger)
				require.ErrorIs(t, err, ErrFixtureOnPersistentStore)
			}

			svc, err = OpenService(t.Context(), cfg, quietLogger)
			require.NoError(t, err)
			defer svc.Close()

			tree, err := svc.CalleeTree(t.Context(), TreeQuery{Symbol: "handle"})
			require.NoError(t, err)
			assert.Len(t, tree.Children, 4)

			g, err := svc.CallGraph(t.Context(), GraphQuery{Symbol: "main"})
			require.NoError(t, err)
			assert.Len(t, g.Edges, 11)
		})
	}
}

func TestService_ClampsDepth(t *testing.T) {
	svc := newTestService(t, func(c *config.Config) { c.Engine.MaxDepth = 2 })

	unlimited := graph.UnlimitedTreeDepth
	tree, err := svc.CalleeTree(t.Context(), TreeQuery{Symbol: "main", Depth: &unlimited})
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Size(), "main -> serve -> handle, cut at two hops")

	g, err := svc.CallGraph(t.Context(), GraphQuery{Symbol: "main"})
	require.NoError(t, err)
	assert.Len(t, g.Edges, 2)
	for _, e := range g.Edges {
		require.NotNil(t, e.CalleeDepth)
		assert.LessOrEqual(t, *e.CalleeDepth, 2)
	}
}

func TestService_InvalidQueries(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := t.Context()

	_, err := svc.CallerTree(ctx, TreeQuery{Symbol: ""})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	zero := 0
	_, err = svc.CallerTree(ctx, TreeQuery{Symbol: "main", Depth: &zero})
	assert.ErrorIs(t, err, graph.ErrInvalidDepth)

	_, err = svc.Heatmap(ctx, GraphQuery{Symbol: "main", MaxDepth: -4})
	assert.ErrorIs(t, err, graph.ErrInvalidDepth)
}

func TestService_ProjectScope(t *testing.T) {
	svc := newTestService(t, nil)

	tree, err := svc.CallerTree(t.Context(), TreeQuery{Symbol: "serve", ProjectID: 2})
	require.NoError(t, err)
	assert.True(t, tree.NotFound)

	tree, err = svc.CallerTree(t.Context(), TreeQuery{Symbol: "serve", ProjectID: 1, Filename: "server.go"})
	require.NoError(t, err)
	assert.False(t, tree.NotFound)
}

// Every backend and fetch strategy must answer identically over the same
// fixture.
func TestService_BackendEquivalence(t *testing.T) {
	variants := []func(*config.Config){
		func(c *config.Config) {},
		func(c *config.Config) { c.Store.Backend = config.BackendBadger },
		func(c *config.Config) { c.Store.Backend = config.BackendSQLite },
		func(c *config.Config) {
			c.Store.Backend = config.BackendSQLite
			c.Engine.FetchStrategy = string(graph.FetchStore)
		},
	}

	unlimited := graph.UnlimitedTreeDepth
	render := func(svc *Service) string {
		ctx := t.Context()
		var out []any
		for _, sym := range []string{"main", "handle", "walk", "store", "log"} {
			callers, err := svc.CallerTree(ctx, TreeQuery{Symbol: sym, Depth: &unlimited})
			require.NoError(t, err)
			callees, err := svc.CalleeTree(ctx, TreeQuery{Symbol: sym, Depth: &unlimited})
			require.NoError(t, err)
			g, err := svc.CallGraph(ctx, GraphQuery{Symbol: sym})
			require.NoError(t, err)
			h, err := svc.Heatmap(ctx, GraphQuery{Symbol: sym})
			require.NoError(t, err)
			out = append(out, callers, callees, g, h)
		}
		data, err := json.Marshal(out)
		require.NoError(t, err)
		return string(data)
	}

	want := render(newTestService(t, variants[0]))
	for i, v := range variants[1:] {
		assert.JSONEq(t, want, render(newTestService(t, v)), "variant %d", i+1)
	}
}
