// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storylens/storylens/internal/backend"
	"github.com/storylens/storylens/internal/buildinfo"
	"github.com/storylens/storylens/internal/metrics"
	"github.com/storylens/storylens/internal/orchestrator"
	"github.com/storylens/storylens/internal/prompts"
	"github.com/storylens/storylens/internal/routing"
)

// Handler bundles the collaborators the HTTP surface needs.
type Handler struct {
	orch     *orchestrator.Orchestrator
	store    *metrics.Store
	resolver *routing.Resolver
}

// NewHandler creates the API handler set.
func NewHandler(orch *orchestrator.Orchestrator, store *metrics.Store, resolver *routing.Resolver) *Handler {
	return &Handler{orch: orch, store: store, resolver: resolver}
}

// RegisterRoutes attaches all endpoints to the gin engine.
func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", h.Health)
	v1 := engine.Group("/v1")
	v1.POST("/analyze-image", h.AnalyzeImage)
	v1.POST("/prompt-to-text", h.PromptToText)
	v1.GET("/metrics", h.GetMetrics)
	v1.GET("/tasks", h.ListTasks)
}

// AnalyzeImage handles POST /v1/analyze-image.
func (h *Handler) AnalyzeImage(c *gin.Context) {
	var in orchestrator.AnalyzeImageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	applyModeHeader(c, &in.Mode)
	if v := c.GetHeader(HeaderOCR); v != "" {
		in.Options.OCR = isTruthy(v)
	}

	resp, err := h.orch.AnalyzeImage(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PromptToText handles POST /v1/prompt-to-text.
func (h *Handler) PromptToText(c *gin.Context) {
	var in orchestrator.PromptToTextInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	applyModeHeader(c, &in.Mode)

	resp, err := h.orch.PromptToText(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetMetrics handles GET /v1/metrics with the aggregate telemetry snapshot.
func (h *Handler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

// ListTasks handles GET /v1/tasks with the fixed prompt task variants.
func (h *Handler) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": prompts.All()})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "storylens",
		"version":        buildinfo.Version,
		"primary_model":  h.resolver.PrimaryModel(),
		"fallback_model": h.resolver.FallbackModel(),
	})
}

// applyModeHeader lets the mode header override the body's mode field.
func applyModeHeader(c *gin.Context, mode *string) {
	if v := strings.TrimSpace(c.GetHeader(HeaderMode)); v != "" {
		*mode = v
	}
}

// isTruthy interprets common header toggle spellings.
func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// writeError maps the error taxonomy onto HTTP statuses. Backend failures
// include the remediation hint so callers can act on classified errors
// without parsing message text.
func writeError(c *gin.Context, err error) {
	var vErr *orchestrator.InputValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "code": "invalid_input"})
		return
	}

	var bErr *backend.Error
	if errors.As(err, &bErr) {
		c.JSON(statusForKind(bErr.Kind), gin.H{
			"error": bErr.Error(),
			"code":  string(bErr.Kind),
			"hint":  bErr.Hint(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "internal"})
}

// statusForKind maps backend failure kinds to response statuses.
func statusForKind(kind backend.Kind) int {
	switch kind {
	case backend.KindRateLimited:
		return http.StatusTooManyRequests
	case backend.KindAuthInvalid:
		return http.StatusUnauthorized
	case backend.KindForbidden:
		return http.StatusForbidden
	case backend.KindBadRequest:
		return http.StatusBadRequest
	case backend.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
