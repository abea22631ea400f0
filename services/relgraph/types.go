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
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxSymbolBytes bounds the symbol accepted by any query.
const MaxSymbolBytes = 1024

var queryValidate *validator.Validate

func init() {
	queryValidate = validator.New()
	_ = queryValidate.RegisterValidation("notblank", validateNotBlank)
}

// validateNotBlank rejects strings that are empty after trimming.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// TreeQuery is a caller or callee tree request as it arrives from HTTP, MCP
// or the CLI.
type TreeQuery struct {
	Symbol    string `form:"symbol" json:"symbol" validate:"required,notblank,max=1024"`
	ProjectID int64  `form:"project_id" json:"project_id,omitempty" validate:"gte=0"`
	Filename  string `form:"filename" json:"filename,omitempty" validate:"max=4096"`

	// Depth is a positive hop count or -1 for unlimited. Nil means 1.
	Depth *int `form:"depth" json:"depth,omitempty"`
}

// Validate checks field constraints. Depth semantics are checked later by
// graph.TreeRequest.Normalize.
func (q *TreeQuery) Validate() error {
	return queryValidate.Struct(q)
}

// GraphQuery is a call graph or heat map request.
type GraphQuery struct {
	Symbol    string `form:"symbol" json:"symbol" validate:"required,notblank,max=1024"`
	ProjectID int64  `form:"project_id" json:"project_id,omitempty" validate:"gte=0"`
	Filename  string `form:"filename" json:"filename,omitempty" validate:"max=4096"`

	// MaxDepth bounds the callee side; 0 means unlimited.
	MaxDepth int `form:"max_depth" json:"max_depth,omitempty"`

	// CallerDepth bounds the caller side; 0 means the same as MaxDepth.
	CallerDepth int `form:"caller_depth" json:"caller_depth,omitempty"`
}

// Validate checks field constraints.
func (q *GraphQuery) Validate() error {
	return queryValidate.Struct(q)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /v1/relgraph/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /v1/relgraph/ready.
type ReadyResponse struct {
	Ready         bool   `json:"ready"`
	Backend       string `json:"backend"`
	FetchStrategy string `json:"fetch_strategy"`
	HeatStrategy  string `json:"heat_strategy"`
	Error         string `json:"error,omitempty"`
}
