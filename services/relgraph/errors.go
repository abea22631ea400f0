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

import "errors"

// Sentinel errors for the relgraph service.
var (
	// ErrInvalidRequest indicates a query failed field validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStoreUnavailable wraps any failure reported by the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnknownBackend indicates an unsupported store.backend value.
	ErrUnknownBackend = errors.New("unknown store backend")

	// ErrFixtureOnPersistentStore indicates a startup fixture aimed at a
	// store that already holds data from earlier runs.
	ErrFixtureOnPersistentStore = errors.New("startup fixtures require a store that starts empty")

	// ErrReloadUnsupported indicates a fixture reload on a persistent backend.
	ErrReloadUnsupported = errors.New("fixture reload requires the memory backend")
)
