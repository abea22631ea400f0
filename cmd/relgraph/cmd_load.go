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
	"fmt"

	"github.com/spf13/cobra"
)

func newLoadCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load FILE",
		Short: "Load a YAML fixture of entities and relationships into the store",
		Long: `Load a YAML fixture into the configured store. Entities are upserted by
identity (project, language, symbol, kind, filename), so loading the same
file twice updates rows in place; relationships are appended.

Examples:
  relgraph load corpus.yaml --backend badger --store-path ./data`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := global.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.svc.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d entities and %d relationships into %s\n",
				res.Entities, res.Relationships, s.svc.Backend())
			return nil
		},
	}
}
