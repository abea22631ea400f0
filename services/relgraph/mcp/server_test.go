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
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relgraph/services/relgraph"
	"github.com/AleutianAI/relgraph/services/relgraph/config"
)

// connect starts a server over the sample fixture and returns a client
// session talking to it in memory.
func connect(t *testing.T) (*mcp.ClientSession, *relgraph.Service) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.Store.Fixture = "../fixture/testdata/sample.yaml"
	svc, err := relgraph.OpenService(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	server := NewServer(svc, logger)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs, svc
}

func call(t *testing.T, cs *mcp.ClientSession, tool string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: tool, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text, res.IsError
}

func TestServer_ListTools(t *testing.T) {
	cs, _ := connect(t)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolCallerTree, ToolCalleeTree, ToolCallGraph, ToolHeatmap}, names)
}

func TestServer_CallerTree(t *testing.T) {
	cs, _ := connect(t)

	text, isErr := call(t, cs, ToolCallerTree, map[string]any{"symbol": "store", "depth": 1})
	require.False(t, isErr, text)

	var tree struct {
		Symbol  string `json:"symbol"`
		Callers []struct {
			Symbol string `json:"symbol"`
		} `json:"callers"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &tree))
	assert.Equal(t, "store", tree.Symbol)
	var callers []string
	for _, c := range tree.Callers {
		callers = append(callers, c.Symbol)
	}
	assert.Equal(t, []string{"decode", "validate", "walk"}, callers)
}

func TestServer_CalleeTree_NotFound(t *testing.T) {
	cs, _ := connect(t)

	text, isErr := call(t, cs, ToolCalleeTree, map[string]any{"symbol": "nope"})
	require.False(t, isErr, "an unknown symbol is a result, not an error")
	assert.Contains(t, text, `"not_found": true`)
}

func TestServer_CallGraphAndHeatmap(t *testing.T) {
	cs, _ := connect(t)

	text, isErr := call(t, cs, ToolCallGraph, map[string]any{"symbol": "serve", "max_depth": 1})
	require.False(t, isErr, text)
	var g struct {
		Root  *int64           `json:"root"`
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &g))
	require.NotNil(t, g.Root)
	assert.EqualValues(t, 2, *g.Root)
	assert.Len(t, g.Nodes, 3, "serve, handle, main")
	assert.Len(t, g.Edges, 2)

	text, isErr = call(t, cs, ToolHeatmap, map[string]any{"symbol": "decode"})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"strategy": "local"`)
}

func TestServer_ToolErrors(t *testing.T) {
	cs, svc := connect(t)

	text, isErr := call(t, cs, ToolCalleeTree, map[string]any{"symbol": "main", "depth": 0})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(text, "INVALID_DEPTH"), text)

	text, isErr = call(t, cs, ToolCallGraph, map[string]any{"symbol": "   "})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(text, "INVALID_REQUEST"), text)

	require.NoError(t, svc.Close())
	text, isErr = call(t, cs, ToolHeatmap, map[string]any{"symbol": "main"})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(text, "STORE_UNAVAILABLE"), text)
}

func TestServer_SchemaResources(t *testing.T) {
	cs, _ := connect(t)

	res, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "relgraph://schemas/call_graph"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	var schema struct {
		Type       string         `json:"type"`
		Required   []string       `json:"required"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"symbol"}, schema.Required)
	assert.Contains(t, schema.Properties, "caller_depth")

	_, err = cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "relgraph://schemas/nope"})
	assert.Error(t, err)
}

func TestBuildSchemaMap(t *testing.T) {
	m, err := buildSchemaMap()
	require.NoError(t, err)
	assert.Len(t, m, 4)
	assert.Contains(t, m[ToolCallerTree], `"depth"`)
}

func TestAddSchema_UnsupportedType(t *testing.T) {
	m := make(map[string]string)
	err := addSchema[chan int](m, "stream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema for stream")
	assert.Empty(t, m)

	require.NoError(t, addSchema[TreeArgs](m, ToolCallerTree))
	assert.Len(t, m, 1)
}
