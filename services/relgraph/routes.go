// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package relgraph

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/relgraph/services/relgraph/telemetry"
)

// RegisterRoutes registers all relgraph routes with the router.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET /v1/relgraph/callers - Caller tree
//	GET /v1/relgraph/callees - Callee tree
//	GET /v1/relgraph/graph - Bidirectional call graph
//	GET /v1/relgraph/heatmap - Downstream heat map
//	GET /v1/relgraph/health - Liveness
//	GET /v1/relgraph/ready - Store readiness
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	r := rg.Group("/relgraph")
	{
		r.GET("/callers", handlers.HandleCallers)
		r.GET("/callees", handlers.HandleCallees)
		r.GET("/graph", handlers.HandleGraph)
		r.GET("/heatmap", handlers.HandleHeatmap)
		r.GET("/health", handlers.HandleHealth)
		r.GET("/ready", handlers.HandleReady)
	}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Debug adds gin's request logger.
	Debug bool

	// Metrics records HTTP request metrics when non-nil.
	Metrics *telemetry.Metrics

	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
}

// NewRouter builds the HTTP router with tracing, metrics and the relgraph
// routes under /v1.
func NewRouter(handlers *Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("relgraph"))
	if opts.Metrics != nil {
		router.Use(telemetry.GinMiddleware(opts.Metrics))
	}
	if opts.Debug {
		router.Use(gin.Logger())
	}
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}
