// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the storylens request lifecycles over HTTP using gin.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/storylens/storylens/internal/util"
)

// Header names understood by the API.
const (
	// HeaderMode overrides the request body's mode field.
	HeaderMode = "X-Storylens-Mode"

	// HeaderOCR toggles the OCR-aware caption variant on analyze-image.
	HeaderOCR = "X-Storylens-OCR"

	// HeaderTraceID carries the assigned trace identifier back to the caller.
	HeaderTraceID = "X-Trace-Id"
)

// TraceMiddleware assigns every request a trace identifier at entry. The ID
// is propagated through the request context into log lines and the metrics
// record, and echoed in the response headers.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := util.NewTraceID()
		c.Request = c.Request.WithContext(util.WithTraceID(c.Request.Context(), traceID))
		c.Header(HeaderTraceID, traceID)
		c.Next()
	}
}
