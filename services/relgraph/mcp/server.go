// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcp exposes the relationship graph queries as Model Context
// Protocol tools over stdio.
//
// Tools: caller_tree, callee_tree, call_graph, heatmap. Argument schemas are
// inferred from the Args structs and also served as resources under
// relgraph://schemas/{tool}.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AleutianAI/relgraph/services/relgraph"
	"github.com/AleutianAI/relgraph/services/relgraph/graph"
)

// Tool names.
const (
	ToolCallerTree = "caller_tree"
	ToolCalleeTree = "callee_tree"
	ToolCallGraph  = "call_graph"
	ToolHeatmap    = "heatmap"
)

// TreeArgs are the arguments of caller_tree and callee_tree.
type TreeArgs struct {
	Symbol    string `json:"symbol" jsonschema:"function name to root the tree at"`
	ProjectID int64  `json:"project_id,omitempty" jsonschema:"restrict root resolution to this project"`
	Filename  string `json:"filename,omitempty" jsonschema:"restrict root resolution to this file"`
	Depth     *int   `json:"depth,omitempty" jsonschema:"hop limit; -1 for unlimited; default 1"`
}

// GraphArgs are the arguments of call_graph and heatmap.
type GraphArgs struct {
	Symbol      string `json:"symbol" jsonschema:"function name to root the graph at"`
	ProjectID   int64  `json:"project_id,omitempty" jsonschema:"restrict root resolution to this project"`
	Filename    string `json:"filename,omitempty" jsonschema:"restrict root resolution to this file"`
	MaxDepth    int    `json:"max_depth,omitempty" jsonschema:"callee hop limit; 0 for unlimited"`
	CallerDepth int    `json:"caller_depth,omitempty" jsonschema:"caller hop limit; 0 for max_depth (call_graph only)"`
}

func (a TreeArgs) query() relgraph.TreeQuery {
	return relgraph.TreeQuery{Symbol: a.Symbol, ProjectID: a.ProjectID, Filename: a.Filename, Depth: a.Depth}
}

func (a GraphArgs) query() relgraph.GraphQuery {
	return relgraph.GraphQuery{
		Symbol:      a.Symbol,
		ProjectID:   a.ProjectID,
		Filename:    a.Filename,
		MaxDepth:    a.MaxDepth,
		CallerDepth: a.CallerDepth,
	}
}

// Server wraps an MCP server bound to a relgraph service.
type Server struct {
	svc    *relgraph.Service
	server *mcp.Server
	logger *slog.Logger
}

// NewServer registers the tools and schema resources.
func NewServer(svc *relgraph.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc: svc,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "relgraph",
			Version: relgraph.ServiceVersion,
		}, nil),
		logger: logger.With(slog.String("component", "relgraph.mcp")),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Run serves over stdin/stdout until ctx is cancelled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolCallerTree,
		Description: "Tree of the functions that call a symbol, transitively up to depth hops. Recursion is marked with loop=true.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TreeArgs) (*mcp.CallToolResult, any, error) {
		tree, err := s.svc.CallerTree(ctx, args.query())
		return s.result(ToolCallerTree, tree, err), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolCalleeTree,
		Description: "Tree of the functions a symbol calls, transitively up to depth hops. Recursion is marked with loop=true.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TreeArgs) (*mcp.CallToolResult, any, error) {
		tree, err := s.svc.CalleeTree(ctx, args.query())
		return s.result(ToolCalleeTree, tree, err), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolCallGraph,
		Description: "Deduplicated nodes and edges around a symbol in both directions. Each edge carries its callee and caller hop distance.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GraphArgs) (*mcp.CallToolResult, any, error) {
		g, err := s.svc.CallGraph(ctx, args.query())
		return s.result(ToolCallGraph, g, err), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolHeatmap,
		Description: "Downstream call graph of a symbol with a heat score in [0,1] per node.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GraphArgs) (*mcp.CallToolResult, any, error) {
		h, err := s.svc.Heatmap(ctx, args.query())
		return s.result(ToolHeatmap, h, err), nil, nil
	})
}

// result renders v as indented JSON, or err as a tool error carrying the
// same codes the HTTP API uses.
func (s *Server) result(tool string, v any, err error) *mcp.CallToolResult {
	if err != nil {
		code := "INVALID_REQUEST"
		switch {
		case errors.Is(err, graph.ErrInvalidDepth):
			code = "INVALID_DEPTH"
		case errors.Is(err, relgraph.ErrStoreUnavailable):
			code = "STORE_UNAVAILABLE"
			s.logger.Error("tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
		}
		return errorResult(fmt.Sprintf("%s: %v", code, err))
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err))
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
