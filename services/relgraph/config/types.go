// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the relgraph server configuration, read from a YAML
// file with defaults for every field.
package config

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/relgraph/pkg/logging"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Port  int  `yaml:"port"`  // e.g. 8080
	Debug bool `yaml:"debug"` // gin debug mode
}

type StoreConfig struct {
	// Backend is one of "memory", "badger", "sqlite".
	Backend string `yaml:"backend"`

	// Path is the badger directory or sqlite file. Empty keeps the
	// backend in memory.
	Path string `yaml:"path"`

	// Fixture is loaded into the store at startup when set. Only stores
	// that start empty accept one; persistent stores are filled with
	// "relgraph load".
	Fixture string `yaml:"fixture"`
}

// Persistent reports whether the store outlives the process.
func (s StoreConfig) Persistent() bool {
	return s.Backend != "" && s.Backend != BackendMemory && s.Path != ""
}

type EngineConfig struct {
	MaxDepth      int    `yaml:"max_depth"`      // request-layer clamp, <= 100
	FetchStrategy string `yaml:"fetch_strategy"` // "hops" or "store"
	HeatStrategy  string `yaml:"heat_strategy"`  // "local" or "global"
	MaxTreeNodes  int    `yaml:"max_tree_nodes"` // e.g. 50000
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, auto
	Dir    string `yaml:"dir"`    // optional file log directory
}

type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter"`  // none, stdout, otlp
	MetricExporter string `yaml:"metric_exporter"` // none, stdout, prometheus
	OTLPEndpoint   string `yaml:"otlp_endpoint"`   // e.g. localhost:4317
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Store:  StoreConfig{Backend: BackendMemory},
		Engine: EngineConfig{
			MaxDepth:      100,
			FetchStrategy: "hops",
			HeatStrategy:  "local",
			MaxTreeNodes:  50000,
		},
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
		},
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	case !oneOf(c.Store.Backend, BackendMemory, BackendBadger, BackendSQLite):
		return fmt.Errorf("%w: store.backend %q", ErrInvalidConfig, c.Store.Backend)
	case c.Store.Fixture != "" && c.Store.Persistent():
		return fmt.Errorf("%w: store.fixture cannot be combined with a persistent %s store at %s (use relgraph load)",
			ErrInvalidConfig, c.Store.Backend, c.Store.Path)
	case c.Engine.MaxDepth < 1 || c.Engine.MaxDepth > 100:
		return fmt.Errorf("%w: engine.max_depth must be in [1, 100], got %d", ErrInvalidConfig, c.Engine.MaxDepth)
	case !oneOf(c.Engine.FetchStrategy, "", "hops", "store"):
		return fmt.Errorf("%w: engine.fetch_strategy %q", ErrInvalidConfig, c.Engine.FetchStrategy)
	case !oneOf(c.Engine.HeatStrategy, "", "local", "global"):
		return fmt.Errorf("%w: engine.heat_strategy %q", ErrInvalidConfig, c.Engine.HeatStrategy)
	case c.Engine.MaxTreeNodes < 0:
		return fmt.Errorf("%w: engine.max_tree_nodes must be >= 0", ErrInvalidConfig)
	case !oneOf(c.Telemetry.TraceExporter, "", "none", "stdout", "otlp"):
		return fmt.Errorf("%w: telemetry.trace_exporter %q", ErrInvalidConfig, c.Telemetry.TraceExporter)
	case !oneOf(c.Telemetry.MetricExporter, "", "none", "stdout", "prometheus"):
		return fmt.Errorf("%w: telemetry.metric_exporter %q", ErrInvalidConfig, c.Telemetry.MetricExporter)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("%w: logging.format: %v", ErrInvalidConfig, err)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
