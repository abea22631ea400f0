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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relgraph/pkg/logging"
	"github.com/AleutianAI/relgraph/services/relgraph"
	"github.com/AleutianAI/relgraph/services/relgraph/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	backend    string
	storePath  string
	fixture    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "relgraph",
		Short: "Caller/callee trees, call graphs and heat maps over a call-graph store",
		Long: `relgraph answers "who calls this?" and "what does this call?" over a
store of functions and call sites.

Stores:
  memory  - in process, usually filled from --fixture
  badger  - embedded key-value store at --store-path
  sqlite  - SQLite file at --store-path

Examples:
  relgraph load corpus.yaml --backend sqlite --store-path rg.db
  relgraph callers handle --depth 3 --backend sqlite --store-path rg.db
  relgraph heatmap main --fixture corpus.yaml
  relgraph serve --config relgraph.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&opts.backend, "backend", "", "Store backend: memory, badger, sqlite")
	flags.StringVar(&opts.storePath, "store-path", "", "Badger directory or SQLite file")
	flags.StringVar(&opts.fixture, "fixture", "", "YAML fixture loaded into the store at startup")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newLoadCmd(opts),
		newTreeCmd(opts, "callers"),
		newTreeCmd(opts, "callees"),
		newGraphCmd(opts, "graph"),
		newGraphCmd(opts, "heatmap"),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func (o *globalOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.backend != "" {
		cfg.Store.Backend = o.backend
	}
	if o.storePath != "" {
		cfg.Store.Path = o.storePath
	}
	if o.fixture != "" {
		cfg.Store.Fixture = o.fixture
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process logger. Console output always goes to stderr
// so stdout stays clean for results and the MCP protocol.
func newLogger(cfg config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("logging.format: %w", err)
	}
	return logging.New(logging.Config{
		Level:   level,
		Format:  format,
		LogDir:  cfg.Logging.Dir,
		Service: "relgraph",
	}), nil
}

// session bundles what a command needs and releases it in close.
type session struct {
	cfg    config.Config
	logger *logging.Logger
	svc    *relgraph.Service
}

func (o *globalOptions) open(ctx context.Context) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	svc, err := relgraph.OpenService(ctx, cfg, logger.Slog())
	if err != nil {
		logger.Close()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, svc: svc}, nil
}

func (s *session) close() {
	if err := s.svc.Close(); err != nil {
		s.logger.Warn("close store", "error", err)
	}
	s.logger.Close()
}
