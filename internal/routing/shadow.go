// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/storylens/storylens/internal/backend"
)

// CallWithShadow launches the primary and shadow calls concurrently, without
// either waiting on the other to start. The primary outcome is returned
// verbatim; its failure propagates unmasked. The shadow outcome is always
// drained before return so no outbound call is left in flight, but any
// shadow failure is swallowed.
func (e *Executor) CallWithShadow(ctx context.Context, primary, shadow string, req backend.CallRequest) (*Result, error) {
	type outcome struct {
		res *backend.CallResult
		err error
	}

	primaryReq := req
	primaryReq.Model = primary
	shadowReq := req
	shadowReq.Model = shadow

	primaryCh := make(chan outcome, 1)
	shadowCh := make(chan outcome, 1)
	go func() {
		res, err := e.client.Call(ctx, primaryReq)
		primaryCh <- outcome{res: res, err: err}
	}()
	go func() {
		res, err := e.client.Call(ctx, shadowReq)
		shadowCh <- outcome{res: res, err: err}
	}()

	primaryOut := <-primaryCh
	// Drain the shadow before returning; its own timeout bounds the wait.
	shadowOut := <-shadowCh

	if primaryOut.err != nil {
		if shadowOut.err == nil {
			log.Debugf("shadow tier %s succeeded while primary %s failed (%s)", shadow, primary, backend.KindOf(primaryOut.err))
		}
		return nil, primaryOut.err
	}

	result := &Result{CallResult: *primaryOut.res}
	if shadowOut.err != nil {
		log.Debugf("shadow call on %s failed and was discarded: %v", shadow, shadowOut.err)
		return result, nil
	}

	shadowCopy := *shadowOut.res
	result.Shadow = &shadowCopy
	result.Comparison = CompareOutputs(primaryOut.res, shadowOut.res)
	log.WithFields(log.Fields{
		"primary_model":     primaryOut.res.Model,
		"shadow_model":      shadowOut.res.Model,
		"word_error_rate":   result.Comparison.WordErrorRate,
		"edit_distance":     result.Comparison.EditDistance,
		"latency_delta_ms":  result.Comparison.LatencyDelta.Milliseconds(),
	}).Debug("shadow comparison")
	return result, nil
}
