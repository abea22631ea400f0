// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
)

// Package-level tracer and meter for engine operations.
var (
	tracer = otel.Tracer("relgraph.graph")
	meter  = otel.Meter("relgraph.graph")
)

// Query outcomes recorded on metrics and spans.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// Metrics for engine operations.
var (
	queryLatency metric.Float64Histogram
	queryTotal   metric.Int64Counter
	edgesFetched metric.Int64Histogram
	fetchHops    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"relgraph_query_duration_seconds",
			metric.WithDescription("Duration of engine query operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryTotal, err = meter.Int64Counter(
			"relgraph_query_total",
			metric.WithDescription("Total number of engine query operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesFetched, err = meter.Int64Histogram(
			"relgraph_edges_fetched",
			metric.WithDescription("Number of edges returned per single-direction expansion"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fetchHops, err = meter.Int64Histogram(
			"relgraph_fetch_hops",
			metric.WithDescription("Number of hops walked per single-direction expansion"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordQueryMetrics records latency and outcome of one engine operation.
func recordQueryMetrics(ctx context.Context, op, outcome string, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	queryTotal.Add(ctx, 1, attrs)
}

// recordFetchMetrics records the size of one expansion.
func recordFetchMetrics(ctx context.Context, dir model.Direction, strategy FetchStrategy, hops, edges int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("direction", dir.String()),
		attribute.String("strategy", string(strategy)),
	)
	edgesFetched.Record(ctx, int64(edges), attrs)
	fetchHops.Record(ctx, int64(hops), attrs)
}

// startQuerySpan creates a span for an engine operation.
func startQuerySpan(ctx context.Context, op, symbol string, depth int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine."+op,
		trace.WithAttributes(
			attribute.String("relgraph.symbol", symbol),
			attribute.Int("relgraph.depth", depth),
		),
	)
}

// endQuerySpan sets the result attributes on a span and ends it.
func endQuerySpan(span trace.Span, outcome string, nodes, edges int, err error) {
	span.SetAttributes(
		attribute.String("relgraph.outcome", outcome),
		attribute.Int("relgraph.node_count", nodes),
		attribute.Int("relgraph.edge_count", edges),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
