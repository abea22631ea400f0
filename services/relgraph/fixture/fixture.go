// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fixture loads entity/relationship corpora from YAML (or JSON, which
// is valid YAML) into any store.Writer.
//
// Format:
//
//	project_id: 1          # default for entities that omit it
//	language: go           # default for entities that omit it
//	entities:
//	  - key: main          # optional, defaults to the symbol
//	    symbol: main
//	    kind: function
//	    filename: main.go
//	    start_line: 3
//	    end_line: 12
//	relationships:
//	  - caller: main       # entity key
//	    callee: run
//	    line: 7
//	  - caller: run
//	    callee_id: 9999    # raw id; may dangle
//	    line: 20
//
// Entities are upserted in file order, so store ids follow the file.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
	"github.com/AleutianAI/relgraph/services/relgraph/store"
)

// ErrInvalidFixture is returned for structurally invalid fixture files.
var ErrInvalidFixture = errors.New("invalid fixture")

// File is a parsed fixture.
type File struct {
	ProjectID     int64                `yaml:"project_id"`
	Language      string               `yaml:"language"`
	Entities      []EntityRecord       `yaml:"entities"`
	Relationships []RelationshipRecord `yaml:"relationships"`
}

// EntityRecord is one entity plus the key relationships refer to it by.
type EntityRecord struct {
	Key          string `yaml:"key"`
	model.Entity `yaml:",inline"`
}

// RelationshipRecord is one call site. Each endpoint is given either as an
// entity key or as a raw store id.
type RelationshipRecord struct {
	Caller   string `yaml:"caller"`
	Callee   string `yaml:"callee"`
	CallerID int64  `yaml:"caller_id"`
	CalleeID int64  `yaml:"callee_id"`
	Line     int    `yaml:"line"`
	Comment  string `yaml:"comment"`
}

// Result reports what Load wrote.
type Result struct {
	// IDs maps each entity key to its store-assigned id.
	IDs map[string]int64

	Entities      int
	Relationships int
}

// Parse decodes a fixture. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	return &f, nil
}

// LoadFile parses the fixture at path and writes it into w.
func LoadFile(ctx context.Context, w store.Writer, path string) (*Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return Load(ctx, w, f)
}

// Load writes f into w: entities first, in file order, then relationships.
//
// Outputs:
//
//	*Result - Key→id mapping and counts.
//	error - ErrInvalidFixture for duplicate or unknown keys and malformed
//	  endpoints, otherwise a wrapped store failure.
func Load(ctx context.Context, w store.Writer, f *File) (*Result, error) {
	res := &Result{IDs: make(map[string]int64, len(f.Entities))}

	for i, rec := range f.Entities {
		e := rec.Entity
		e.ID = 0
		if e.ProjectID == 0 {
			e.ProjectID = f.ProjectID
		}
		if e.Language == "" {
			e.Language = f.Language
		}
		if e.Symbol == "" {
			return nil, fmt.Errorf("%w: entity %d has no symbol", ErrInvalidFixture, i)
		}
		key := rec.Key
		if key == "" {
			key = e.Symbol
		}
		if _, dup := res.IDs[key]; dup {
			return nil, fmt.Errorf("%w: duplicate entity key %q", ErrInvalidFixture, key)
		}

		id, err := w.UpsertEntity(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("load entity %q: %w", key, err)
		}
		res.IDs[key] = id
		res.Entities++
	}

	for i, rec := range f.Relationships {
		caller, err := endpoint(res.IDs, rec.Caller, rec.CallerID)
		if err != nil {
			return nil, fmt.Errorf("relationship %d caller: %w", i, err)
		}
		callee, err := endpoint(res.IDs, rec.Callee, rec.CalleeID)
		if err != nil {
			return nil, fmt.Errorf("relationship %d callee: %w", i, err)
		}

		_, err = w.AddRelationship(ctx, model.Relationship{
			CallerID: caller,
			CalleeID: callee,
			Line:     rec.Line,
			Comment:  rec.Comment,
		})
		if err != nil {
			return nil, fmt.Errorf("load relationship %d: %w", i, err)
		}
		res.Relationships++
	}
	return res, nil
}

func endpoint(ids map[string]int64, key string, raw int64) (int64, error) {
	switch {
	case key != "" && raw != 0:
		return 0, fmt.Errorf("%w: both key %q and id %d given", ErrInvalidFixture, key, raw)
	case key != "":
		id, ok := ids[key]
		if !ok {
			return 0, fmt.Errorf("%w: unknown entity key %q", ErrInvalidFixture, key)
		}
		return id, nil
	case raw != 0:
		return raw, nil
	default:
		return 0, fmt.Errorf("%w: missing endpoint", ErrInvalidFixture)
	}
}
