// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlite stores entities and relationships in SQLite.
//
// Besides the batched Store reads it implements store.Expander: a bounded
// multi-hop expansion runs as one recursive query instead of one round trip
// per hop. The recursion walks (node, depth) pairs rather than paths, so
// cycles terminate at the depth bound and every edge is tagged with the
// minimum depth of its near endpoint.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
)

// maxBatch caps the number of bound parameters per IN (...) clause.
const maxBatch = 500

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  INTEGER NOT NULL,
	language    TEXT    NOT NULL,
	symbol      TEXT    NOT NULL,
	kind        TEXT    NOT NULL,
	filename    TEXT    NOT NULL,
	start_line  INTEGER NOT NULL DEFAULT 0,
	end_line    INTEGER NOT NULL DEFAULT 0,
	source      TEXT    NOT NULL DEFAULT '',
	parameters  TEXT    NOT NULL DEFAULT '',
	return_type TEXT    NOT NULL DEFAULT '',
	doc_comment TEXT    NOT NULL DEFAULT '',
	UNIQUE (project_id, language, symbol, kind, filename)
);
CREATE INDEX IF NOT EXISTS idx_entities_symbol ON entities (symbol);

CREATE TABLE IF NOT EXISTS relationships (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	caller_id INTEGER NOT NULL,
	callee_id INTEGER NOT NULL,
	line      INTEGER NOT NULL DEFAULT 0,
	comment   TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_relationships_caller ON relationships (caller_id, id);
CREATE INDEX IF NOT EXISTS idx_relationships_callee ON relationships (callee_id, id);
`

const entityColumns = `id, project_id, language, symbol, kind, filename, start_line, end_line,
	source, parameters, return_type, doc_comment`

const upsertEntity = `
INSERT INTO entities (project_id, language, symbol, kind, filename, start_line, end_line,
	source, parameters, return_type, doc_comment)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (project_id, language, symbol, kind, filename) DO UPDATE SET
	start_line  = excluded.start_line,
	end_line    = excluded.end_line,
	source      = excluded.source,
	parameters  = excluded.parameters,
	return_type = excluded.return_type,
	doc_comment = excluded.doc_comment
RETURNING id`

// expandQuery walks (node, depth) pairs up to maxDepth-1 hops from the root,
// keeps each node's minimum depth, and emits the edges leaving those nodes.
// The %[1]s/%[2]s verbs are the near/far columns for the direction.
const expandQuery = `
WITH RECURSIVE reach(id, depth) AS (
	SELECT ?, 0
	UNION
	SELECT r.%[2]s, reach.depth + 1
	FROM reach JOIN relationships r ON r.%[1]s = reach.id
	WHERE reach.depth + 1 < ?
),
nearest(id, depth) AS (
	SELECT id, MIN(depth) FROM reach GROUP BY id
)
SELECT r.id, r.caller_id, r.callee_id, r.line, r.comment, nearest.depth + 1 AS hop
FROM nearest JOIN relationships r ON r.%[1]s = nearest.id
ORDER BY hop, r.id`

// Store implements store.ReadWriter and store.Expander on SQLite.
//
// Thread Safety: Safe for concurrent use (database/sql pools connections).
type Store struct {
	db *sql.DB
}

var (
	_ store.ReadWriter = (*Store)(nil)
	_ store.Expander   = (*Store)(nil)
)

// Open opens (and migrates) the database at path.
//
// An empty path or ":memory:" opens a private in-memory database; the pool is
// then pinned to one connection since every connection would otherwise see
// its own empty database.
func Open(path string) (*Store, error) {
	inMemory := path == "" || path == ":memory:"
	dsn := "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	if inMemory {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if inMemory {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertEntity inserts e or updates the row with the same identity key.
func (s *Store) UpsertEntity(ctx context.Context, e model.Entity) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, upsertEntity,
		e.ProjectID, e.Language, e.Symbol, e.Kind, e.Filename, e.StartLine, e.EndLine,
		e.Source, e.Parameters, e.ReturnType, e.DocComment,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert entity %q: %w", e.Symbol, err)
	}
	return id, nil
}

// AddRelationship records one call site.
func (s *Store) AddRelationship(ctx context.Context, r model.Relationship) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO relationships (caller_id, callee_id, line, comment) VALUES (?, ?, ?, ?)`,
		r.CallerID, r.CalleeID, r.Line, r.Comment)
	if err != nil {
		return 0, fmt.Errorf("add relationship: %w", err)
	}
	return res.LastInsertId()
}

// FetchEntity returns the entities matching q, ordered by id.
func (s *Store) FetchEntity(ctx context.Context, q store.EntityQuery) ([]model.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE symbol = ?`
	args := []any{q.Symbol}
	if q.ProjectID != 0 {
		query += ` AND project_id = ?`
		args = append(args, q.ProjectID)
	}
	if q.Filename != "" {
		query += ` AND filename = ?`
		args = append(args, q.Filename)
	}
	if q.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, q.Kind)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch entity %q: %w", q.Symbol, err)
	}
	return scanEntities(rows)
}

// FetchEntitiesByID returns the entities with the given ids, ordered by id.
func (s *Store) FetchEntitiesByID(ctx context.Context, ids []int64) ([]model.Entity, error) {
	result := make([]model.Entity, 0, len(ids))
	for _, batch := range batches(store.UniqueIDs(ids)) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+entityColumns+` FROM entities WHERE id IN (`+placeholders(len(batch))+`)`,
			toArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("fetch entities by id: %w", err)
		}
		ents, err := scanEntities(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ents...)
	}
	store.SortEntities(result)
	return result, nil
}

// FetchEdgesFrom returns relationships whose caller is in ids.
func (s *Store) FetchEdgesFrom(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	return s.fetchEdges(ctx, "caller_id", ids)
}

// FetchEdgesTo returns relationships whose callee is in ids.
func (s *Store) FetchEdgesTo(ctx context.Context, ids []int64) ([]model.Relationship, error) {
	return s.fetchEdges(ctx, "callee_id", ids)
}

func (s *Store) fetchEdges(ctx context.Context, column string, ids []int64) ([]model.Relationship, error) {
	result := make([]model.Relationship, 0)
	for _, batch := range batches(store.UniqueIDs(ids)) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, caller_id, callee_id, line, comment FROM relationships WHERE `+
				column+` IN (`+placeholders(len(batch))+`) ORDER BY id`,
			toArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("fetch edges: %w", err)
		}
		for rows.Next() {
			var r model.Relationship
			if err := rows.Scan(&r.ID, &r.CallerID, &r.CalleeID, &r.Line, &r.Comment); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan relationship: %w", err)
			}
			result = append(result, r)
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	store.SortRelationships(result)
	return result, nil
}

// FetchGlobalCallerCounts counts distinct callers per id.
func (s *Store) FetchGlobalCallerCounts(ctx context.Context, ids []int64) (map[int64]int, error) {
	unique := store.UniqueIDs(ids)
	counts := make(map[int64]int, len(unique))
	for _, id := range unique {
		counts[id] = 0
	}
	for _, batch := range batches(unique) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT callee_id, COUNT(DISTINCT caller_id) FROM relationships
			 WHERE callee_id IN (`+placeholders(len(batch))+`) GROUP BY callee_id`,
			toArgs(batch)...)
		if err != nil {
			return nil, fmt.Errorf("fetch caller counts: %w", err)
		}
		for rows.Next() {
			var id int64
			var n int
			if err := rows.Scan(&id, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan caller count: %w", err)
			}
			counts[id] = n
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

// Expand runs a bounded multi-hop expansion in a single recursive query.
//
// The recursion keys on (node, depth), so a cycle keeps producing rows until
// the depth bound. A minimum distance can never exceed the number of stored
// relationships, so the bound is lowered to that count plus one before the
// query runs. The result is unchanged.
func (s *Store) Expand(ctx context.Context, rootID int64, dir model.Direction, maxDepth int) ([]model.DepthEdge, error) {
	near, far := "caller_id", "callee_id"
	switch dir {
	case model.Callees:
	case model.Callers:
		near, far = far, near
	default:
		return nil, fmt.Errorf("expand: unsupported direction %s", dir)
	}

	result := make([]model.DepthEdge, 0)
	if maxDepth < 1 {
		return result, nil
	}

	var edges int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&edges); err != nil {
		return nil, fmt.Errorf("count relationships: %w", err)
	}
	maxDepth = expandBound(maxDepth, edges)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(expandQuery, near, far), rootID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("expand %s from %d: %w", dir, rootID, err)
	}
	for rows.Next() {
		var e model.DepthEdge
		if err := rows.Scan(&e.ID, &e.CallerID, &e.CalleeID, &e.Line, &e.Comment, &e.Depth); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expanded edge: %w", err)
		}
		result = append(result, e)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return result, nil
}

// expandBound caps a requested hop count at edges+1.
func expandBound(maxDepth, edges int) int {
	if edges+1 < maxDepth {
		return edges + 1
	}
	return maxDepth
}

func scanEntities(rows *sql.Rows) ([]model.Entity, error) {
	result := make([]model.Entity, 0)
	for rows.Next() {
		var e model.Entity
		err := rows.Scan(&e.ID, &e.ProjectID, &e.Language, &e.Symbol, &e.Kind, &e.Filename,
			&e.StartLine, &e.EndLine, &e.Source, &e.Parameters, &e.ReturnType, &e.DocComment)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		result = append(result, e)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return result, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate rows: %w", err)
	}
	return rows.Close()
}

func batches(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > maxBatch {
		out = append(out, ids[:maxBatch])
		ids = ids[maxBatch:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
