// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the entity/relationship records read from the store
// and the request-scoped views (trees, graphs, heat maps) derived from them.
//
// Stored records (Entity, Relationship) are created by an external extractor
// and are read-only to the engine. Derived records (GraphNode, GraphEdge,
// TreeNode) live only for the duration of one request.
package model

import "fmt"

// Entity kinds produced by the extractor.
const (
	KindFunction = "function"
	KindMethod   = "method"
	KindClass    = "class"
	KindStruct   = "struct"
)

// UnknownSymbol is the symbol reported for ids with no matching entity row.
const UnknownSymbol = "unknown"

// Entity is a named code construct with a source location.
//
// Symbols are not unique: the same name can exist in several files, kinds or
// projects. The identity used for upserts is returned by Key.
type Entity struct {
	// ID is assigned by the store.
	ID int64 `json:"id" yaml:"id"`

	ProjectID int64  `json:"project_id" yaml:"project_id"`
	Language  string `json:"language" yaml:"language"`
	Symbol    string `json:"symbol" yaml:"symbol"`
	Kind      string `json:"kind" yaml:"kind"`
	Filename  string `json:"filename" yaml:"filename"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`

	// Optional extractor output.
	Source     string `json:"source,omitempty" yaml:"source,omitempty"`
	Parameters string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	ReturnType string `json:"return_type,omitempty" yaml:"return_type,omitempty"`
	DocComment string `json:"doc_comment,omitempty" yaml:"doc_comment,omitempty"`
}

// EntityKey is the upsert identity of an entity.
type EntityKey struct {
	ProjectID int64
	Language  string
	Symbol    string
	Kind      string
	Filename  string
}

// Key returns the upsert identity (project, language, symbol, kind, filename).
func (e Entity) Key() EntityKey {
	return EntityKey{
		ProjectID: e.ProjectID,
		Language:  e.Language,
		Symbol:    e.Symbol,
		Kind:      e.Kind,
		Filename:  e.Filename,
	}
}

// String renders the key for use in store indexes.
func (k EntityKey) String() string {
	return fmt.Sprintf("%d\x00%s\x00%s\x00%s\x00%s", k.ProjectID, k.Language, k.Kind, k.Filename, k.Symbol)
}

// Relationship is a directed call edge recorded at one call site.
//
// Several relationships can share the same (CallerID, CalleeID) pair; each
// is a distinct call site and none are deduplicated.
type Relationship struct {
	// ID is assigned by the store in insertion order.
	ID       int64  `json:"id" yaml:"id"`
	CallerID int64  `json:"caller_id" yaml:"caller_id"`
	CalleeID int64  `json:"callee_id" yaml:"callee_id"`
	Line     int    `json:"line" yaml:"line"`
	Comment  string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// EdgeKey identifies a call site independently of traversal direction.
type EdgeKey struct {
	CallerID int64
	CalleeID int64
	Line     int
}

// Key returns the (caller, callee, line) identity of the relationship.
func (r Relationship) Key() EdgeKey {
	return EdgeKey{CallerID: r.CallerID, CalleeID: r.CalleeID, Line: r.Line}
}

// DepthEdge is a relationship tagged with the minimum hop count at which a
// traversal first reached it.
type DepthEdge struct {
	Relationship
	Depth int `json:"depth"`
}

// Direction selects which way a traversal follows edges.
type Direction int

const (
	// Callees follows caller → callee.
	Callees Direction = iota

	// Callers follows callee → caller.
	Callers

	// Both runs the two directions as independent expansions.
	Both
)

// String returns the lower-case direction name.
func (d Direction) String() string {
	switch d {
	case Callees:
		return "callees"
	case Callers:
		return "callers"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// Next returns the id reached by following r in direction d.
func (d Direction) Next(r Relationship) int64 {
	if d == Callers {
		return r.CallerID
	}
	return r.CalleeID
}

// GraphNode is one entity in a graph view.
type GraphNode struct {
	ID         int64  `json:"id"`
	Symbol     string `json:"symbol"`
	Kind       string `json:"kind,omitempty"`
	Filename   string `json:"filename,omitempty"`
	StartLine  int    `json:"start_line,omitempty"`
	EndLine    int    `json:"end_line,omitempty"`
	Parameters string `json:"parameters,omitempty"`
	ReturnType string `json:"return_type,omitempty"`
	IsRoot     bool   `json:"is_root"`

	// NotFound marks ids referenced by an edge but absent from the store.
	NotFound bool `json:"not_found,omitempty"`
}

// NewGraphNode builds a graph node from an entity row.
func NewGraphNode(e Entity) GraphNode {
	return GraphNode{
		ID:         e.ID,
		Symbol:     e.Symbol,
		Kind:       e.Kind,
		Filename:   e.Filename,
		StartLine:  e.StartLine,
		EndLine:    e.EndLine,
		Parameters: e.Parameters,
		ReturnType: e.ReturnType,
	}
}

// MissingGraphNode builds the placeholder for an id with no entity row.
func MissingGraphNode(id int64) GraphNode {
	return GraphNode{ID: id, Symbol: UnknownSymbol, NotFound: true}
}

// GraphEdge is one call site in a graph view.
//
// CalleeDepth and CallerDepth are the minimum hop counts from the root in the
// respective direction, nil when the edge was not reached that way. At least
// one of them is always set.
type GraphEdge struct {
	From        int64 `json:"from"`
	To          int64 `json:"to"`
	Line        int   `json:"line"`
	CalleeDepth *int  `json:"callee_depth"`
	CallerDepth *int  `json:"caller_depth"`
}

// Key returns the call-site identity of the edge.
func (e GraphEdge) Key() EdgeKey {
	return EdgeKey{CallerID: e.From, CalleeID: e.To, Line: e.Line}
}

// GraphResult is a deduplicated node/edge set around a root.
//
// Root is nil when the requested symbol did not resolve; Nodes and Edges are
// then empty (never nil, so they encode as []).
type GraphResult struct {
	Root  *int64      `json:"root"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// EmptyGraph returns the not-found sentinel graph.
func EmptyGraph() *GraphResult {
	return &GraphResult{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
}

// HeatNode is a graph node with its connectivity score.
type HeatNode struct {
	GraphNode
	Count int     `json:"count"`
	Heat  float64 `json:"heat"`
}

// HeatmapResult is a downstream subgraph scored for visualization.
type HeatmapResult struct {
	Root     *int64      `json:"root"`
	Strategy string      `json:"strategy"`
	Nodes    []HeatNode  `json:"nodes"`
	Edges    []GraphEdge `json:"edges"`
}

// EmptyHeatmap returns the not-found sentinel heat map.
func EmptyHeatmap(strategy string) *HeatmapResult {
	return &HeatmapResult{Strategy: strategy, Nodes: []HeatNode{}, Edges: []GraphEdge{}}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
