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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relgraph/services/relgraph/mcp"
)

func newMCPCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the graph queries as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := global.open(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			logger := s.logger.With("transport", "mcp")
			logger.Info("Starting relgraph MCP server", "backend", s.svc.Backend())
			return mcp.NewServer(s.svc, logger.Slog()).Run(ctx)
		},
	}
}
