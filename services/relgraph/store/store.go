// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the entity/relationship store contract consumed by the
// graph engine, plus the write side used by extractors and fixtures.
//
// Three backends implement it:
//
//   - memory: ordered in-process indexes, for tests and small corpora
//   - badger: embedded key-value store on local disk
//   - sqlite: relational store; also expands multi-hop traversals store-side
//     with a recursive query (see Expander)
//
// All read methods are set-valued and batched: a caller resolves a whole
// traversal frontier with one call. Errors returned by a store are
// infrastructure failures and are fatal to the current request.
package store

import (
	"context"
	"errors"
	"slices"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// EntityQuery selects entities by symbol with optional narrowing filters.
//
// Zero values mean "no filter" for ProjectID, Filename and Kind.
type EntityQuery struct {
	Symbol    string
	ProjectID int64
	Filename  string
	Kind      string
}

// Matches reports whether e satisfies the query.
func (q EntityQuery) Matches(e model.Entity) bool {
	if e.Symbol != q.Symbol {
		return false
	}
	if q.ProjectID != 0 && e.ProjectID != q.ProjectID {
		return false
	}
	if q.Filename != "" && e.Filename != q.Filename {
		return false
	}
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	return true
}

// Store is the read contract of the relationship graph engine.
//
// Thread Safety: implementations must be safe for concurrent use.
type Store interface {
	// FetchEntity returns the entities matching q, ordered by id.
	FetchEntity(ctx context.Context, q EntityQuery) ([]model.Entity, error)

	// FetchEdgesFrom returns every relationship whose caller is in ids.
	FetchEdgesFrom(ctx context.Context, ids []int64) ([]model.Relationship, error)

	// FetchEdgesTo returns every relationship whose callee is in ids.
	FetchEdgesTo(ctx context.Context, ids []int64) ([]model.Relationship, error)

	// FetchEntitiesByID returns the entities with the given ids. Ids without
	// a row are silently absent from the result.
	FetchEntitiesByID(ctx context.Context, ids []int64) ([]model.Entity, error)

	// FetchGlobalCallerCounts returns, for each id, the number of distinct
	// callers recorded anywhere in the store. Ids with no callers map to 0.
	FetchGlobalCallerCounts(ctx context.Context, ids []int64) (map[int64]int, error)
}

// Expander is implemented by stores that can run a whole bounded multi-hop
// expansion in one store-side query.
//
// The result must equal the hop-by-hop expansion: every relationship whose
// near endpoint lies within maxDepth-1 hops of rootID in direction dir,
// tagged with that minimum distance plus one, ordered by (Depth, ID).
type Expander interface {
	Expand(ctx context.Context, rootID int64, dir model.Direction, maxDepth int) ([]model.DepthEdge, error)
}

// Writer is the extractor-facing write side of a store.
type Writer interface {
	// UpsertEntity inserts e or updates the row with the same identity key,
	// returning the store-assigned id.
	UpsertEntity(ctx context.Context, e model.Entity) (int64, error)

	// AddRelationship records one call site and returns its id. Endpoints
	// are not checked for existence.
	AddRelationship(ctx context.Context, r model.Relationship) (int64, error)
}

// ReadWriter combines the read and write sides with lifecycle management.
type ReadWriter interface {
	Store
	Writer
	Close() error
}

// UniqueIDs returns ids with duplicates removed, preserving first occurrence.
func UniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SortRelationships orders relationships by id (insertion order).
func SortRelationships(rels []model.Relationship) {
	slices.SortFunc(rels, func(a, b model.Relationship) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
}

// SortEntities orders entities by id.
func SortEntities(ents []model.Entity) {
	slices.SortFunc(ents, func(a, b model.Entity) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
}
