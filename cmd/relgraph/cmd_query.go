// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/relgraph/pkg/ux"
	"github.com/AleutianAI/relgraph/services/relgraph"
	"github.com/AleutianAI/relgraph/services/relgraph/graph"
)

type queryOptions struct {
	projectID int64
	filename  string
	json      bool
}

func (q *queryOptions) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&q.projectID, "project", 0, "Only resolve the root within this project id")
	cmd.Flags().StringVar(&q.filename, "filename", "", "Only resolve the root within this file")
	cmd.Flags().BoolVar(&q.json, "json", false, "Output as JSON for scripting")
}

// newTreeCmd builds "callers" or "callees".
func newTreeCmd(global *globalOptions, name string) *cobra.Command {
	var q queryOptions
	var depth int

	short := "Show the tree of functions that call SYMBOL"
	if name == "callees" {
		short = "Show the tree of functions SYMBOL calls"
	}
	cmd := &cobra.Command{
		Use:   name + " SYMBOL",
		Short: short,
		Long: short + `.

Depth counts hops from SYMBOL; -1 walks until the graph is exhausted (capped
at 100 hops). Recursion is shown once and marked as a loop.

Examples:
  relgraph ` + name + ` handle
  relgraph ` + name + ` handle --depth -1 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := global.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			query := relgraph.TreeQuery{
				Symbol:    args[0],
				ProjectID: q.projectID,
				Filename:  q.filename,
				Depth:     &depth,
			}
			build := s.svc.CallerTree
			if name == "callees" {
				build = s.svc.CalleeTree
			}
			tree, err := build(cmd.Context(), query)
			if err != nil {
				return err
			}
			if q.json {
				return writeJSON(cmd.OutOrStdout(), tree)
			}
			return renderer(cmd.OutOrStdout()).Tree(cmd.OutOrStdout(), tree)
		},
	}
	q.register(cmd)
	cmd.Flags().IntVar(&depth, "depth", graph.DefaultTreeDepth, "Hop limit, or -1 for unlimited")
	return cmd
}

// newGraphCmd builds "graph" or "heatmap".
func newGraphCmd(global *globalOptions, name string) *cobra.Command {
	var q queryOptions
	var maxDepth, callerDepth int

	short := "Show the call graph around SYMBOL in both directions"
	if name == "heatmap" {
		short = "Score the functions downstream of SYMBOL by connectivity"
	}
	cmd := &cobra.Command{
		Use:   name + " SYMBOL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := global.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			query := relgraph.GraphQuery{
				Symbol:      args[0],
				ProjectID:   q.projectID,
				Filename:    q.filename,
				MaxDepth:    maxDepth,
				CallerDepth: callerDepth,
			}
			out := cmd.OutOrStdout()
			if name == "heatmap" {
				h, err := s.svc.Heatmap(cmd.Context(), query)
				if err != nil {
					return err
				}
				if q.json {
					return writeJSON(out, h)
				}
				return renderer(out).Heatmap(out, h)
			}

			g, err := s.svc.CallGraph(cmd.Context(), query)
			if err != nil {
				return err
			}
			if q.json {
				return writeJSON(out, g)
			}
			return renderer(out).Graph(out, g)
		},
	}
	q.register(cmd)
	cmd.Flags().IntVar(&maxDepth, "max-depth", graph.UnlimitedGraphDepth, "Callee hop limit, 0 for unlimited")
	if name == "graph" {
		cmd.Flags().IntVar(&callerDepth, "caller-depth", 0, "Caller hop limit, 0 to match --max-depth")
	}
	return cmd
}

// renderer styles output only for terminals.
func renderer(w io.Writer) ux.Renderer {
	f, ok := w.(*os.File)
	return ux.Renderer{Plain: !ok || !isatty.IsTerminal(f.Fd())}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
