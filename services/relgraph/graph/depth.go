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
	"fmt"
	"strings"
)

// Depth limits.
const (
	// MaxTraversalDepth is the finite bound substituted for "unlimited".
	MaxTraversalDepth = 100

	// UnlimitedTreeDepth is the tree-depth sentinel for "unlimited".
	UnlimitedTreeDepth = -1

	// UnlimitedGraphDepth is the graph-depth sentinel for "unlimited".
	UnlimitedGraphDepth = 0

	// DefaultTreeDepth is used by the request layer when no depth is given.
	DefaultTreeDepth = 1
)

// NormalizeTreeDepth translates a tree depth into a finite hop bound.
//
// Description:
//
//	Trees accept a positive depth or -1 meaning "unlimited". The sentinel
//	becomes MaxTraversalDepth. Values above the ceiling pass through; the
//	request layer decides whether to clamp them.
//
// Inputs:
//
//	d - Requested depth.
//
// Outputs:
//
//	int - Normalized depth, always >= 1.
//	error - ErrInvalidDepth for 0 and for negatives other than -1.
func NormalizeTreeDepth(d int) (int, error) {
	switch {
	case d == UnlimitedTreeDepth:
		return MaxTraversalDepth, nil
	case d >= 1:
		return d, nil
	default:
		return 0, fmt.Errorf("%w: tree depth must be >= 1 or -1, got %d", ErrInvalidDepth, d)
	}
}

// NormalizeGraphDepth translates a graph or heat-map depth into a finite hop
// bound. 0 means "unlimited" and becomes MaxTraversalDepth; negatives are
// rejected with ErrInvalidDepth.
func NormalizeGraphDepth(d int) (int, error) {
	switch {
	case d == UnlimitedGraphDepth:
		return MaxTraversalDepth, nil
	case d >= 1:
		return d, nil
	default:
		return 0, fmt.Errorf("%w: graph depth must be >= 0, got %d", ErrInvalidDepth, d)
	}
}

// TreeRequest asks for a caller or callee tree.
type TreeRequest struct {
	Symbol    string
	ProjectID int64
	Filename  string

	// Depth is a positive hop count or UnlimitedTreeDepth.
	Depth int
}

// Normalize validates r and returns a copy with a finite depth and a trimmed
// symbol.
func (r TreeRequest) Normalize() (TreeRequest, error) {
	r.Symbol = strings.TrimSpace(r.Symbol)
	if r.Symbol == "" {
		return r, ErrEmptySymbol
	}
	d, err := NormalizeTreeDepth(r.Depth)
	if err != nil {
		return r, err
	}
	r.Depth = d
	return r, nil
}

// GraphRequest asks for a bidirectional call graph or a heat map.
type GraphRequest struct {
	Symbol    string
	ProjectID int64
	Filename  string

	// MaxDepth bounds the callee direction (and the heat-map subgraph).
	// UnlimitedGraphDepth means MaxTraversalDepth.
	MaxDepth int

	// CallerDepth bounds the caller direction. Zero means "same as
	// MaxDepth"; a caller wanting an unlimited caller side while bounding
	// callees passes MaxTraversalDepth.
	CallerDepth int
}

// Normalize validates r and returns a copy with finite depths in both
// directions.
func (r GraphRequest) Normalize() (GraphRequest, error) {
	r.Symbol = strings.TrimSpace(r.Symbol)
	if r.Symbol == "" {
		return r, ErrEmptySymbol
	}
	d, err := NormalizeGraphDepth(r.MaxDepth)
	if err != nil {
		return r, err
	}
	r.MaxDepth = d

	switch {
	case r.CallerDepth == 0:
		r.CallerDepth = d
	case r.CallerDepth < 0:
		return r, fmt.Errorf("%w: caller depth must be >= 0, got %d", ErrInvalidDepth, r.CallerDepth)
	}
	return r, nil
}

// ClampDepth caps a normalized depth at ceiling. A non-positive ceiling means
// MaxTraversalDepth.
func ClampDepth(d, ceiling int) int {
	if ceiling <= 0 || ceiling > MaxTraversalDepth {
		ceiling = MaxTraversalDepth
	}
	if d > ceiling {
		return ceiling
	}
	return d
}
