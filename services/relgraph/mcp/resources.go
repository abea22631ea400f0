// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const schemaPrefix = "relgraph://schemas/"

func (s *Server) registerResources() {
	schemas, err := buildSchemaMap()
	if err != nil {
		s.logger.Warn("tool schemas incomplete", slog.String("error", err.Error()))
	}

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: schemaPrefix + "{tool}",
		Name:        "Tool Schema",
		Description: "JSON schema for the named tool's arguments",
		MIMEType:    "application/schema+json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		schema, ok := schemas[strings.TrimPrefix(uri, schemaPrefix)]
		if !ok {
			return nil, fmt.Errorf("unknown tool schema: %q", uri)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      uri,
				MIMEType: "application/schema+json",
				Text:     schema,
			}},
		}, nil
	})
}

// buildSchemaMap maps tool name to the JSON schema of its arguments. Tools
// whose schema fails to build are left out and reported in the error.
func buildSchemaMap() (map[string]string, error) {
	m := make(map[string]string)
	err := errors.Join(
		addSchema[TreeArgs](m, ToolCallerTree),
		addSchema[TreeArgs](m, ToolCalleeTree),
		addSchema[GraphArgs](m, ToolCallGraph),
		addSchema[GraphArgs](m, ToolHeatmap),
	)
	return m, err
}

func addSchema[T any](m map[string]string, name string) error {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", name, err)
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema for %s: %w", name, err)
	}
	m[name] = string(data)
	return nil
}
