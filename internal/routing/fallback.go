// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/storylens/storylens/internal/backend"
)

// Result is the envelope returned by the executors. The embedded CallResult
// always reflects the primary outcome; a shadow result never substitutes for
// primary output.
type Result struct {
	backend.CallResult

	// FallbackUsed is true when the result was served by the fallback tier
	// after the primary call failed.
	FallbackUsed bool `json:"fallback_used,omitempty"`

	// Shadow holds the shadow call's result when a shadow ran and succeeded.
	// It is a read-only copy; nothing downstream mutates it.
	Shadow *backend.CallResult `json:"shadow_result,omitempty"`

	// Comparison carries shadow-vs-primary telemetry. Never exposed to API
	// callers; consumed by logs only.
	Comparison *ShadowComparison `json:"-"`
}

// Executor runs backend calls with one-shot fallback or concurrent shadow
// semantics on top of a backend.Caller.
type Executor struct {
	client backend.Caller
}

// NewExecutor creates an executor over the given backend client.
func NewExecutor(client backend.Caller) *Executor {
	return &Executor{client: client}
}

// CallWithFallback attempts the primary tier and, on any classified failure,
// retries exactly once against the fallback tier with the identical prompt
// and timeout. If the fallback also fails, its error (not the primary's)
// propagates. Latency on the fallback path is strictly additive.
func (e *Executor) CallWithFallback(ctx context.Context, primary, fallback string, req backend.CallRequest) (*Result, error) {
	req.Model = primary
	res, err := e.client.Call(ctx, req)
	if err == nil {
		return &Result{CallResult: *res}, nil
	}

	log.Warnf("primary call on %s failed (%s), retrying once on fallback tier %s", primary, backend.KindOf(err), fallback)

	req.Model = fallback
	res, ferr := e.client.Call(ctx, req)
	if ferr != nil {
		return nil, ferr
	}
	fres := &Result{CallResult: *res, FallbackUsed: true}
	return fres, nil
}
