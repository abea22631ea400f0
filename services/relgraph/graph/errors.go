// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph is the relationship graph engine: it turns the flat, often
// cyclic caller/callee relation held by a store into bounded-depth trees,
// bidirectional graphs and heat scores.
//
// # Components
//
//   - Fetcher: bounded multi-hop expansion from a root, one batched store
//     call per hop (or one store-side recursive query), edges tagged with the
//     minimum hop count at which they were reached.
//   - TreeBuilder: single-direction tree with per-path cycle cutting.
//   - Merger: union of a callee and a caller expansion around one root.
//   - HeatScorer: normalized [0,1] connectivity scores.
//   - Engine: the query surface used by the HTTP, MCP and CLI layers.
//
// # Thread Safety
//
// All components are stateless between requests and safe for concurrent use.
// Traversal state (frontiers, visited sets, node maps) is request-local.
//
// # Errors
//
// An unresolvable root symbol is not an error: it yields a sentinel result
// (model.NotFoundTree, model.EmptyGraph). Dangling edges become "unknown"
// nodes and cycles become loop markers. Only invalid requests and store
// failures are returned as errors.
package graph

import "errors"

// Sentinel errors for engine operations.
var (
	// ErrInvalidDepth is returned when a depth is neither a positive integer
	// nor the "unlimited" sentinel accepted by the operation.
	ErrInvalidDepth = errors.New("invalid depth")

	// ErrEmptySymbol is returned when a request names no root symbol.
	ErrEmptySymbol = errors.New("symbol is required")

	// ErrInvalidDirection is returned when a single-direction operation is
	// asked to traverse model.Both.
	ErrInvalidDirection = errors.New("invalid traversal direction")

	// ErrUnknownStrategy is returned when a fetch or heat strategy name is
	// not recognized.
	ErrUnknownStrategy = errors.New("unknown strategy")
)
