// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package util holds small helpers shared across storylens packages.
package util

import (
	"context"

	"github.com/google/uuid"
)

type traceIDKey struct{}

// NewTraceID returns a fresh trace identifier for one request. The short
// form keeps log lines readable while staying unique enough for correlation.
func NewTraceID() string {
	return uuid.New().String()[:8]
}

// WithTraceID attaches a trace identifier to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFrom extracts the trace identifier from the context, or "" when
// the request entered without one.
func TraceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}
