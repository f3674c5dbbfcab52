// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"strings"
	"time"

	"github.com/arbovm/levenshtein"

	"github.com/storylens/storylens/internal/backend"
)

// ShadowComparison quantifies how far the shadow output drifted from the
// primary output. It exists purely for telemetry; request outcomes never
// depend on it.
type ShadowComparison struct {
	// WordErrorRate is the word-level edit distance divided by the primary
	// word count, 0 for identical outputs.
	WordErrorRate float64

	// EditDistance is the character-level Levenshtein distance.
	EditDistance int

	// LatencyDelta is shadow latency minus primary latency.
	LatencyDelta time.Duration
}

// CompareOutputs computes shadow-vs-primary drift telemetry.
func CompareOutputs(primary, shadow *backend.CallResult) *ShadowComparison {
	return &ShadowComparison{
		WordErrorRate: wordErrorRate(primary.Text, shadow.Text),
		EditDistance:  levenshtein.Distance(primary.Text, shadow.Text),
		LatencyDelta:  shadow.Latency - primary.Latency,
	}
}

// wordErrorRate computes the word-level edit distance between reference and
// hypothesis, normalized by the reference length.
func wordErrorRate(reference, hypothesis string) float64 {
	ref := strings.Fields(reference)
	hyp := strings.Fields(hypothesis)
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}

	prev := make([]int, len(hyp)+1)
	curr := make([]int, len(hyp)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ref); i++ {
		curr[0] = i
		for j := 1; j <= len(hyp); j++ {
			cost := 1
			if ref[i-1] == hyp[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return float64(prev[len(hyp)]) / float64(len(ref))
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
