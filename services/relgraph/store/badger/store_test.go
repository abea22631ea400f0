// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relgraph/services/relgraph/store"
	"github.com/AleutianAI/relgraph/services/relgraph/storetest"
)

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.ReadWriter {
		s, err := Open(InMemoryConfig())
		require.NoError(t, err)
		return s
	})
}

// TestStore_Reopen verifies that data and id sequences survive a restart.
func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)
	a := storetest.MustUpsert(t, s, storetest.Entity("A", "a.go"))
	b := storetest.MustUpsert(t, s, storetest.Entity("B", "a.go"))
	edge := storetest.MustLink(t, s, a, b, 12)
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FetchEntity(ctx, store.EntityQuery{Symbol: "B"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0].ID)

	edges, err := s.FetchEdgesFrom(ctx, []int64{a})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, edge, edges[0].ID)

	c := storetest.MustUpsert(t, s, storetest.Entity("C", "a.go"))
	assert.Greater(t, c, b, "ids keep increasing after reopen")
	assert.Equal(t, a, storetest.MustUpsert(t, s, storetest.Entity("A", "a.go")))
}

// TestStore_SymbolPrefix verifies that a symbol does not match longer symbols
// sharing its prefix.
func TestStore_SymbolPrefix(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	run := storetest.MustUpsert(t, s, storetest.Entity("Run", "a.go"))
	storetest.MustUpsert(t, s, storetest.Entity("RunAll", "a.go"))

	got, err := s.FetchEntity(context.Background(), store.EntityQuery{Symbol: "Run"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, run, got[0].ID)
}

func TestEncodeID(t *testing.T) {
	tests := []int64{0, 1, 255, 256, 1 << 40}
	for _, id := range tests {
		assert.Equal(t, id, decodeID(encodeID(id)))
	}
	assert.Less(t, string(encodeID(255)), string(encodeID(256)), "big-endian keeps numeric order")
	assert.Equal(t, int64(0), decodeID([]byte{1, 2}))
}
