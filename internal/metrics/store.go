// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics provides a bounded in-memory telemetry buffer for request
// outcomes. The buffer retains at most the most recent maxRecords entries
// (FIFO eviction) and aggregates on demand; nothing is persisted.
package metrics

import (
	"strings"
	"sync"
)

// defaultMaxRecords bounds the buffer when no explicit capacity is given.
const defaultMaxRecords = 1000

// Record is one request's telemetry. Immutable once appended.
type Record struct {
	// TraceID is the request's trace identifier.
	TraceID string `json:"trace_id"`

	// Endpoint names the orchestrator entry point ("analyze-image" or
	// "prompt-to-text").
	Endpoint string `json:"endpoint"`

	// Mode is the effective request mode ("fast" or "quality").
	Mode string `json:"mode"`

	// ChosenModel is the tier the resolver selected.
	ChosenModel string `json:"chosen_model"`

	// UsedModel is the tier that actually served the response; differs from
	// ChosenModel on the fallback path.
	UsedModel string `json:"used_model"`

	// FallbackUsed is true when the fallback tier served the response.
	FallbackUsed bool `json:"fallback_used"`

	// ShadowRan is true when a shadow call ran and produced a result.
	ShadowRan bool `json:"shadow_ran"`

	// LatencyMS is the end-to-end latency in milliseconds; on failure it is
	// the latency accumulated up to the failure.
	LatencyMS int64 `json:"latency_ms"`

	// Confidence is the backend-reported confidence when present.
	Confidence *float64 `json:"confidence,omitempty"`

	// PromptTokens is the token count of the outbound prompt.
	PromptTokens int `json:"prompt_tokens,omitempty"`

	// Error is the terminal error message, empty on success.
	Error string `json:"error,omitempty"`
}

// Summary is a point-in-time aggregation over the current buffer.
type Summary struct {
	TotalRequests   int     `json:"total_requests"`
	SuccessCount    int     `json:"success_count"`
	ErrorCount      int     `json:"error_count"`
	SuccessRate     float64 `json:"success_rate"`
	FallbackRate    float64 `json:"fallback_rate"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
	AvgConfidence   float64 `json:"avg_confidence"`
	ABPrimaryCount  int     `json:"ab_primary_count"`
	ABFallbackCount int     `json:"ab_fallback_count"`
	ShadowRequests  int     `json:"shadow_requests"`
}

// Store is the bounded telemetry buffer. It is owned by a single service
// instance and injected where needed; it carries its own synchronization so
// concurrent in-flight requests can append safely.
type Store struct {
	mu      sync.Mutex
	records []Record
	max     int

	// primaryFragment and fallbackFragment are the tier name fragments used
	// to bucket records into A/B outcome counts via substring match.
	primaryFragment  string
	fallbackFragment string
}

// NewStore creates a store that retains at most maxRecords entries and
// buckets A/B outcomes by the given tier name fragments. A non-positive
// maxRecords uses the default capacity of 1000.
func NewStore(maxRecords int, primaryFragment, fallbackFragment string) *Store {
	if maxRecords <= 0 {
		maxRecords = defaultMaxRecords
	}
	return &Store{
		records:          make([]Record, 0, maxRecords),
		max:              maxRecords,
		primaryFragment:  primaryFragment,
		fallbackFragment: fallbackFragment,
	}
}

// Add appends a record, evicting the oldest entries first when the buffer
// would exceed its capacity.
func (s *Store) Add(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if len(s.records) > s.max {
		s.records = s.records[len(s.records)-s.max:]
	}
}

// Len returns the current number of buffered records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Snapshot computes the aggregate summary over the current buffer.
func (s *Store) Snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{TotalRequests: len(s.records)}
	if sum.TotalRequests == 0 {
		return sum
	}

	var latencyTotal int64
	var confidenceTotal float64
	confidenceCount := 0
	fallbackCount := 0

	for i := range s.records {
		rec := &s.records[i]
		if rec.Error == "" {
			sum.SuccessCount++
		} else {
			sum.ErrorCount++
		}
		if rec.FallbackUsed {
			fallbackCount++
		}
		if rec.ShadowRan {
			sum.ShadowRequests++
		}
		latencyTotal += rec.LatencyMS
		if rec.Confidence != nil {
			confidenceTotal += *rec.Confidence
			confidenceCount++
		}
		switch {
		case s.fallbackFragment != "" && strings.Contains(rec.ChosenModel, s.fallbackFragment):
			sum.ABFallbackCount++
		case s.primaryFragment != "" && strings.Contains(rec.ChosenModel, s.primaryFragment):
			sum.ABPrimaryCount++
		}
	}

	total := float64(sum.TotalRequests)
	sum.SuccessRate = float64(sum.SuccessCount) / total
	sum.FallbackRate = float64(fallbackCount) / total
	sum.AvgLatencyMS = float64(latencyTotal) / total
	if confidenceCount > 0 {
		sum.AvgConfidence = confidenceTotal / float64(confidenceCount)
	}
	return sum
}

// Records returns a copy of the current buffer in insertion order.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Reset empties the buffer. Test isolation only.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}
