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
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
)

const (
	prefixEntity   = "ent/"
	prefixIdentity = "key/"
	prefixSymbol   = "sym/"
	prefixOut      = "out/"
	prefixIn       = "in/"

	seqEntity = "seq/entity"
	seqEdge   = "seq/edge"

	// seqBandwidth is how many ids a sequence leases at a time.
	seqBandwidth = 256
)

// Store implements store.ReadWriter on top of BadgerDB.
//
// Thread Safety: Safe for concurrent use. Writes are serialized so that
// identity-key upserts cannot race each other.
type Store struct {
	db *DB

	writeMu   sync.Mutex
	entitySeq *badger.Sequence
	edgeSeq   *badger.Sequence
}

var _ store.ReadWriter = (*Store)(nil)

// Open opens a Badger-backed store.
func Open(cfg Config) (*Store, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	return New(db)
}

// New wraps an already opened database.
func New(db *DB) (*Store, error) {
	entitySeq, err := db.GetSequence([]byte(seqEntity), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("entity sequence: %w", err)
	}
	edgeSeq, err := db.GetSequence([]byte(seqEdge), seqBandwidth)
	if err != nil {
		entitySeq.Release()
		return nil, fmt.Errorf("edge sequence: %w", err)
	}
	return &Store{db: db, entitySeq: entitySeq, edgeSeq: edgeSeq}, nil
}

// Close releases the id sequences and closes the database.
func (s *Store) Close() error {
	var errs []error
	if err := s.entitySeq.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.edgeSeq.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// UpsertEntity inserts e or overwrites the row sharing its identity key.
func (s *Store) UpsertEntity(ctx context.Context, e model.Entity) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	identity := identityKey(e.Key())
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(identity)
		switch {
		case err == nil:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			e.ID = decodeID(raw)
		case errors.Is(err, badger.ErrKeyNotFound):
			next, err := s.entitySeq.Next()
			if err != nil {
				return fmt.Errorf("next entity id: %w", err)
			}
			e.ID = int64(next) + 1
			if err := txn.Set(identity, encodeID(e.ID)); err != nil {
				return err
			}
			if err := txn.Set(symbolKey(e.Symbol, e.ID), nil); err != nil {
				return err
			}
		default:
			return err
		}

		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entity: %w", err)
		}
		return txn.Set(entityKey(e.ID), value)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert entity %q: %w", e.Symbol, err)
	}
	return e.ID, nil
}

// AddRelationship records one call site under both endpoints.
func (s *Store) AddRelationship(ctx context.Context, r model.Relationship) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := s.edgeSeq.Next()
	if err != nil {
		return 0, fmt.Errorf("next edge id: %w", err)
	}
	r.ID = int64(next) + 1

	value, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("encode relationship: %w", err)
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(edgeKey(prefixOut, r.CallerID, r.ID), value); err != nil {
			return err
		}
		return txn.Set(edgeKey(prefixIn, r.CalleeID, r.ID), value)
	})
	if err != nil {
		return 0, fmt.Errorf("add relationship: %w", err)
	}
	return r.ID, nil
}

// FetchEntity returns the entities matching q, ordered by id.
func (s *Store) FetchEntity(ctx context.Context, q store.EntityQuery) ([]model.Entity, error) {
	result := make([]model.Entity, 0)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		prefix := append([]byte(prefixSymbol+q.Symbol), 0)

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var ids []int64
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, decodeID(key[len(prefix):]))
		}
		ents, err := getEntities(txn, ids)
		if err != nil {
			return err
		}
		for _, e := range ents {
			if q.Matches(e) {
				result = append(result, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch entity %q: %w", q.Symbol, err)
	}
	store.SortEntities(result)
	return result, nil
}

// FetchEdgesFrom returns relationships whose caller is in ids.
func (s *Store) FetchEdgesFrom(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	return s.fetchEdges(ctx, prefixOut, ids)
}

// FetchEdgesTo returns relationships whose callee is in ids.
func (s *Store) FetchEdgesTo(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	return s.fetchEdges(ctx, prefixIn, ids)
}

func (s *Store) fetchEdges(ctx context.Context, prefix string, ids []int64) ([]model.Relationship, error) {
	result := make([]model.Relationship, 0)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		for _, id := range store.UniqueIDs(ids) {
			err := scanEdges(txn, prefix, id, func(r model.Relationship) {
				result = append(result, r)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch edges: %w", err)
	}
	store.SortRelationships(result)
	return result, nil
}

// FetchEntitiesByID returns the entities with the given ids, ordered by id.
func (s *Store) FetchEntitiesByID(ctx context.Context, ids []int64) ([]model.Entity, error) {
	var result []model.Entity
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		result, err = getEntities(txn, store.UniqueIDs(ids))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch entities by id: %w", err)
	}
	store.SortEntities(result)
	return result, nil
}

// FetchGlobalCallerCounts counts distinct callers per id.
func (s *Store) FetchGlobalCallerCounts(ctx context.Context, ids []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(ids))
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		for _, id := range store.UniqueIDs(ids) {
			callers := make(map[int64]struct{})
			err := scanEdges(txn, prefixIn, id, func(r model.Relationship) {
				callers[r.CallerID] = struct{}{}
			})
			if err != nil {
				return err
			}
			counts[id] = len(callers)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch caller counts: %w", err)
	}
	return counts, nil
}

func scanEdges(txn *badger.Txn, prefix string, id int64, fn func(model.Relationship)) error {
	p := append([]byte(prefix), encodeID(id)...)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = p
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		var r model.Relationship
		err := it.Item().Value(func(v []byte) error {
			return json.Unmarshal(v, &r)
		})
		if err != nil {
			return fmt.Errorf("decode relationship: %w", err)
		}
		fn(r)
	}
	return nil
}

func getEntities(txn *badger.Txn, ids []int64) ([]model.Entity, error) {
	result := make([]model.Entity, 0, len(ids))
	for _, id := range ids {
		item, err := txn.Get(entityKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var e model.Entity
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &e) }); err != nil {
			return nil, fmt.Errorf("decode entity %d: %w", id, err)
		}
		result = append(result, e)
	}
	return result, nil
}

func encodeID(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func decodeID(b []byte) int64 {
	if len(b) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b[:8]))
}

func entityKey(id int64) []byte {
	return append([]byte(prefixEntity), encodeID(id)...)
}

func identityKey(k model.EntityKey) []byte {
	return []byte(prefixIdentity + k.String())
}

func symbolKey(symbol string, id int64) []byte {
	key := append([]byte(prefixSymbol+symbol), 0)
	return append(key, encodeID(id)...)
}

func edgeKey(prefix string, node, edge int64) []byte {
	key := append([]byte(prefix), encodeID(node)...)
	return append(key, encodeID(edge)...)
}
