// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memory provides an in-process entity/relationship store.
//
// Entities and relationships are kept in ordered B-tree indexes so that
// set-valued lookups come back in id order without a sort:
//
//	entities   ordered by id
//	outgoing   ordered by (caller id, edge id)
//	incoming   ordered by (callee id, edge id)
//
// The store is intended for tests, fixtures and small corpora. Nothing is
// persisted.
package memory

import (
	"context"
	"sync"

	"github.com/tidwall/btree"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
)

// edgeRef indexes a relationship under one of its endpoints.
type edgeRef struct {
	node int64
	edge int64
}

func lessEdgeRef(a, b edgeRef) bool {
	if a.node != b.node {
		return a.node < b.node
	}
	return a.edge < b.edge
}

// Store is an in-memory implementation of store.ReadWriter.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	entities *btree.BTreeG[model.Entity]
	byKey    map[model.EntityKey]int64
	bySymbol map[string][]int64

	edges    map[int64]model.Relationship
	outgoing *btree.BTreeG[edgeRef]
	incoming *btree.BTreeG[edgeRef]

	nextEntity int64
	nextEdge   int64
	closed     bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entities: btree.NewBTreeG(func(a, b model.Entity) bool { return a.ID < b.ID }),
		byKey:    make(map[model.EntityKey]int64),
		bySymbol: make(map[string][]int64),
		edges:    make(map[int64]model.Relationship),
		outgoing: btree.NewBTreeG(lessEdgeRef),
		incoming: btree.NewBTreeG(lessEdgeRef),
	}
}

var _ store.ReadWriter = (*Store)(nil)

// UpsertEntity inserts e, or replaces the row sharing its identity key.
func (s *Store) UpsertEntity(ctx context.Context, e model.Entity) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	key := e.Key()
	if id, ok := s.byKey[key]; ok {
		e.ID = id
		s.entities.Set(e)
		return id, nil
	}

	s.nextEntity++
	e.ID = s.nextEntity
	s.entities.Set(e)
	s.byKey[key] = e.ID
	s.bySymbol[e.Symbol] = append(s.bySymbol[e.Symbol], e.ID)
	return e.ID, nil
}

// AddRelationship records one call site.
func (s *Store) AddRelationship(ctx context.Context, r model.Relationship) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	s.nextEdge++
	r.ID = s.nextEdge
	s.edges[r.ID] = r
	s.outgoing.Set(edgeRef{node: r.CallerID, edge: r.ID})
	s.incoming.Set(edgeRef{node: r.CalleeID, edge: r.ID})
	return r.ID, nil
}

// DeleteEntity removes the entity row but leaves its relationships in place,
// which is what a concurrent deletion looks like to a reader.
func (s *Store) DeleteEntity(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities.Get(model.Entity{ID: id})
	if !ok {
		return nil
	}
	s.entities.Delete(e)
	delete(s.byKey, e.Key())
	ids := s.bySymbol[e.Symbol]
	for i, candidate := range ids {
		if candidate == id {
			s.bySymbol[e.Symbol] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// FetchEntity returns the entities matching q, ordered by id.
func (s *Store) FetchEntity(ctx context.Context, q store.EntityQuery) ([]model.Entity, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Entity, 0)
	for _, id := range s.bySymbol[q.Symbol] {
		e, ok := s.entities.Get(model.Entity{ID: id})
		if ok && q.Matches(e) {
			result = append(result, e)
		}
	}
	store.SortEntities(result)
	return result, nil
}

// FetchEdgesFrom returns relationships whose caller is in ids.
func (s *Store) FetchEdgesFrom(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	return s.fetchEdges(ctx, s.outgoing, ids)
}

// FetchEdgesTo returns relationships whose callee is in ids.
func (s *Store) FetchEdgesTo(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	return s.fetchEdges(ctx, s.incoming, ids)
}

func (s *Store) fetchEdges(ctx context.Context, index *btree.BTreeG[edgeRef], ids []int64) ([]model.Relationship, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Relationship, 0)
	for _, id := range store.UniqueIDs(ids) {
		index.Ascend(edgeRef{node: id}, func(ref edgeRef) bool {
			if ref.node != id {
				return false
			}
			result = append(result, s.edges[ref.edge])
			return true
		})
	}
	store.SortRelationships(result)
	return result, nil
}

// FetchEntitiesByID returns the entities with the given ids, ordered by id.
func (s *Store) FetchEntitiesByID(ctx context.Context, ids []int64) ([]model.Entity, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Entity, 0, len(ids))
	for _, id := range store.UniqueIDs(ids) {
		if e, ok := s.entities.Get(model.Entity{ID: id}); ok {
			result = append(result, e)
		}
	}
	store.SortEntities(result)
	return result, nil
}

// FetchGlobalCallerCounts counts distinct callers per id across the store.
func (s *Store) FetchGlobalCallerCounts(ctx context.Context, ids []int64) (map[int64]int, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int, len(ids))
	for _, id := range store.UniqueIDs(ids) {
		callers := make(map[int64]struct{})
		s.incoming.Ascend(edgeRef{node: id}, func(ref edgeRef) bool {
			if ref.node != id {
				return false
			}
			callers[s.edges[ref.edge].CallerID] = struct{}{}
			return true
		})
		counts[id] = len(callers)
	}
	return counts, nil
}

// Len returns the number of entities and relationships held.
func (s *Store) Len() (entities, relationships int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities.Len(), len(s.edges)
}

// Close marks the store closed. Subsequent operations return store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}
