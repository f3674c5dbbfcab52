// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package orchestrator composes the resolver, executors, guardrails and
// metrics store into the two request lifecycles storylens exposes:
// analyze-image and prompt-to-text. Each request moves through the same
// state machine: Validate, Resolve, Invoke, PostProcess, Record, Return.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"

	"github.com/storylens/storylens/internal/backend"
	"github.com/storylens/storylens/internal/config"
	"github.com/storylens/storylens/internal/metrics"
	"github.com/storylens/storylens/internal/routing"
	"github.com/storylens/storylens/internal/util"
)

// InputValidationError marks a caller-input problem. These fail immediately,
// before any backend call is made or metrics record is created, and are
// never retried.
type InputValidationError struct {
	msg string
}

// Error implements the error interface.
func (e *InputValidationError) Error() string { return e.msg }

// invalidInputf builds an InputValidationError.
func invalidInputf(format string, args ...any) *InputValidationError {
	return &InputValidationError{msg: fmt.Sprintf(format, args...)}
}

// Orchestrator is the top-level request entry point. One instance serves all
// requests; all mutable state lives in the injected collaborators.
type Orchestrator struct {
	resolver *routing.Resolver
	executor *routing.Executor
	store    *metrics.Store
	limits   config.LimitsConfig

	// fetchClient retrieves caller-referenced HTTPS images.
	fetchClient *http.Client

	// codec counts prompt tokens for telemetry.
	codec tokenizer.Codec
}

// New wires an orchestrator from its collaborators.
func New(resolver *routing.Resolver, executor *routing.Executor, store *metrics.Store, limits config.LimitsConfig) (*Orchestrator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: tokenizer init failed: %w", err)
	}
	return &Orchestrator{
		resolver:    resolver,
		executor:    executor,
		store:       store,
		limits:      limits,
		fetchClient: &http.Client{Timeout: 15 * time.Second},
		codec:       codec,
	}, nil
}

// invoke runs the backend call through the shadow path when shadow mode is
// enabled and the resolved tiers differ, otherwise through the one-shot
// fallback path.
func (o *Orchestrator) invoke(ctx context.Context, decision routing.Decision, req backend.CallRequest) (*routing.Result, error) {
	if o.resolver.ShadowEnabled() && decision.ChosenModel != decision.OtherModel {
		return o.executor.CallWithShadow(ctx, decision.ChosenModel, decision.OtherModel, req)
	}
	return o.executor.CallWithFallback(ctx, decision.ChosenModel, decision.OtherModel, req)
}

// record appends one telemetry record. Terminal failures after resolution are
// recorded too; errors are never silently swallowed at this layer.
func (o *Orchestrator) record(ctx context.Context, endpoint string, decision routing.Decision, promptTokens int, result *routing.Result, callErr error, elapsed time.Duration) {
	rec := metrics.Record{
		TraceID:      util.TraceIDFrom(ctx),
		Endpoint:     endpoint,
		Mode:         string(decision.Mode),
		ChosenModel:  decision.ChosenModel,
		UsedModel:    decision.ChosenModel,
		LatencyMS:    elapsed.Milliseconds(),
		PromptTokens: promptTokens,
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	} else if result != nil {
		rec.UsedModel = result.Model
		rec.FallbackUsed = result.FallbackUsed
		rec.ShadowRan = result.Shadow != nil
		confidence := result.Confidence
		rec.Confidence = &confidence
	}
	o.store.Add(rec)

	entry := log.WithFields(log.Fields{
		"trace_id":      rec.TraceID,
		"endpoint":      endpoint,
		"mode":          rec.Mode,
		"chosen_model":  rec.ChosenModel,
		"used_model":    rec.UsedModel,
		"latency_ms":    rec.LatencyMS,
		"prompt_tokens": promptTokens,
	})
	if callErr != nil {
		entry.Warnf("request failed: %v", callErr)
		return
	}
	entry.Info("request completed")
}

// countTokens counts prompt tokens for telemetry. A tokenizer failure falls
// back to a whitespace word count rather than failing the request.
func (o *Orchestrator) countTokens(text string) int {
	ids, _, err := o.codec.Encode(text)
	if err != nil {
		return len(strings.Fields(text))
	}
	return len(ids)
}

// normalizeMode applies the default and validates the mode string.
func normalizeMode(mode string) (routing.Mode, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return routing.ModeFast, nil
	}
	if !routing.ValidMode(mode) {
		return "", invalidInputf("unknown mode %q: want %q or %q", mode, routing.ModeFast, routing.ModeQuality)
	}
	return routing.Mode(mode), nil
}
