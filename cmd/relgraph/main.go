// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command relgraph serves and queries the relationship graph engine.
//
// Usage:
//
//	relgraph serve [--port 8080]
//	relgraph mcp
//	relgraph load FILE
//	relgraph callers|callees SYMBOL [--depth N] [--project ID] [--json]
//	relgraph graph|heatmap SYMBOL [--max-depth N] [--filename F] [--json]
//
// Every command reads --config (YAML, optional) and accepts --backend,
// --store-path and --fixture to override the store section.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
