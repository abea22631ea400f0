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
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/relgraph/services/relgraph"
	"github.com/AleutianAI/relgraph/services/relgraph/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(global *globalOptions) *cobra.Command {
	var port int
	var debug bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API under /v1/relgraph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := global.open(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			if cmd.Flags().Changed("port") {
				s.cfg.Server.Port = port
			}
			if debug {
				s.cfg.Server.Debug = true
			}

			shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfig(s))
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := shutdownTelemetry(sctx); err != nil {
					s.logger.Warn("telemetry shutdown", "error", err)
				}
			}()

			if watch {
				stopWatch, err := watchFixture(ctx, s)
				if err != nil {
					return err
				}
				defer stopWatch()
			}

			srv, err := newHTTPServer(s)
			if err != nil {
				return err
			}
			return runHTTPServer(ctx, s, srv)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on (overrides server.port)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable gin debug mode and request logging")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the fixture when it changes (memory backend only)")
	return cmd
}

// watchFixture starts reloading the configured fixture on change.
func watchFixture(ctx context.Context, s *session) (func(), error) {
	if s.cfg.Store.Fixture == "" {
		return nil, errors.New("--watch requires a fixture (--fixture or store.fixture)")
	}
	w, err := relgraph.NewFixtureWatcher(s.svc, s.cfg.Store.Fixture, 0, s.logger.Slog())
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w.Stop, nil
}

func telemetryConfig(s *session) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = relgraph.ServiceVersion
	tc.TraceExporter = s.cfg.Telemetry.TraceExporter
	tc.MetricExporter = s.cfg.Telemetry.MetricExporter
	tc.OTLPEndpoint = s.cfg.Telemetry.OTLPEndpoint
	return tc
}

// newHTTPServer wires handlers, metrics and the router for s.
func newHTTPServer(s *session) (*http.Server, error) {
	if s.cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics, err := telemetry.NewMetrics(otel.Meter("relgraph.http"))
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	router := relgraph.NewRouter(relgraph.NewHandlers(s.svc, s.logger.With("transport", "http").Slog()), relgraph.RouterOptions{
		Debug:          s.cfg.Server.Debug,
		Metrics:        metrics,
		MetricsHandler: telemetry.MetricsHandler(),
	})
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// runHTTPServer serves until ctx is cancelled, then drains in-flight requests.
func runHTTPServer(ctx context.Context, s *session, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting relgraph server",
			"address", srv.Addr,
			"backend", s.svc.Backend(),
			"fetch_strategy", s.svc.Engine().FetchStrategy(),
			"heat_strategy", s.svc.Engine().HeatStrategy(),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down relgraph server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
