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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/relgraph/services/relgraph/graph"
	"github.com/AleutianAI/relgraph/services/relgraph/model"
)

// Handlers contains the HTTP handlers for relgraph.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// HandleCallers handles GET /v1/relgraph/callers.
//
// Query Parameters:
//
//	symbol: Function name (required)
//	project_id, filename: Narrow root resolution (optional)
//	depth: Hop limit, or -1 for unlimited (optional, default 1)
//
// Response:
//
//	200 OK: Tree with a "callers" list
//	404 Not Found: {"symbol": ..., "not_found": true}
//	400 Bad Request: INVALID_REQUEST or INVALID_DEPTH
//	503 Service Unavailable: STORE_UNAVAILABLE
func (h *Handlers) HandleCallers(c *gin.Context) {
	h.handleTree(c, "HandleCallers", h.svc.CallerTree)
}

// HandleCallees handles GET /v1/relgraph/callees. Parameters and responses
// mirror HandleCallers, with the list under "children".
func (h *Handlers) HandleCallees(c *gin.Context) {
	h.handleTree(c, "HandleCallees", h.svc.CalleeTree)
}

func (h *Handlers) handleTree(c *gin.Context, handler string, build func(context.Context, TreeQuery) (*model.TreeNode, error)) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", handler)

	var q TreeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("Invalid query parameters", "error", err)
		h.writeError(c, logger, err)
		return
	}

	tree, err := build(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	if tree.NotFound {
		logger.Info("Symbol not found", "symbol", q.Symbol)
		c.JSON(http.StatusNotFound, tree)
		return
	}
	logger.Info("Built tree", "symbol", q.Symbol, "nodes", tree.Size(), "truncated", tree.Truncated)
	c.JSON(http.StatusOK, tree)
}

// HandleGraph handles GET /v1/relgraph/graph.
//
// Query Parameters:
//
//	symbol: Function name (required)
//	project_id, filename: Narrow root resolution (optional)
//	max_depth: Callee hop limit, 0 for unlimited (optional, default 0)
//	caller_depth: Caller hop limit, 0 for max_depth (optional)
//
// Response:
//
//	200 OK: GraphResult. An unknown symbol yields {"root": null, "nodes": [], "edges": []}.
//	400 Bad Request: INVALID_REQUEST or INVALID_DEPTH
//	503 Service Unavailable: STORE_UNAVAILABLE
func (h *Handlers) HandleGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleGraph")

	var q GraphQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("Invalid query parameters", "error", err)
		h.writeError(c, logger, err)
		return
	}

	g, err := h.svc.CallGraph(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	logger.Info("Built call graph", "symbol", q.Symbol, "nodes", len(g.Nodes), "edges", len(g.Edges))
	c.JSON(http.StatusOK, g)
}

// HandleHeatmap handles GET /v1/relgraph/heatmap.
//
// Query Parameters and responses match HandleGraph; caller_depth is ignored.
func (h *Handlers) HandleHeatmap(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleHeatmap")

	var q GraphQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("Invalid query parameters", "error", err)
		h.writeError(c, logger, err)
		return
	}

	hm, err := h.svc.Heatmap(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	logger.Info("Built heat map", "symbol", q.Symbol, "nodes", len(hm.Nodes), "strategy", hm.Strategy)
	c.JSON(http.StatusOK, hm)
}

// HandleHealth handles GET /v1/relgraph/health. Always 200 while running.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/relgraph/ready.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false) when the store fails
func (h *Handlers) HandleReady(c *gin.Context) {
	engine := h.svc.Engine()
	resp := ReadyResponse{
		Ready:         true,
		Backend:       h.svc.Backend(),
		FetchStrategy: string(engine.FetchStrategy()),
		HeatStrategy:  string(engine.HeatStrategy()),
	}
	if err := h.svc.Ready(c.Request.Context()); err != nil {
		resp.Ready = false
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps a service error to its status code and error code.
func (h *Handlers) writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := http.StatusBadRequest, "INVALID_REQUEST"
	switch {
	case errors.Is(err, graph.ErrInvalidDepth):
		code = "INVALID_DEPTH"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, graph.ErrEmptySymbol):
	case errors.Is(err, ErrStoreUnavailable):
		status, code = http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
		logger.Error("Store failure", "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// getOrCreateRequestID gets X-Request-ID from the request or generates one,
// echoing it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
