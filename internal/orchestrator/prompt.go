// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/storylens/storylens/internal/backend"
	"github.com/storylens/storylens/internal/guardrails"
	"github.com/storylens/storylens/internal/prompts"
)

// defaultEvaluateScore is returned when the evaluate task finds no score
// pattern in the model's free-form text. The accompanying ScoreIsDefault
// flag distinguishes this fallback from a genuine measurement.
const defaultEvaluateScore = 0.8

// PromptToTextInput is the prompt-to-text request body.
type PromptToTextInput struct {
	// Task selects the handler variant: refine, evaluate or simplify.
	Task string `json:"task"`

	// Prompt is the caller's prompt text.
	Prompt string `json:"prompt"`

	// TargetLength optionally requests an approximate output word count.
	TargetLength int `json:"target_length,omitempty"`

	// Mode selects the latency/quality tradeoff; the X-Storylens-Mode
	// header overrides it.
	Mode string `json:"mode"`
}

// PromptToTextResponse is the structured prompt-to-text result. Score and
// Suggestions are populated by the evaluate task only.
type PromptToTextResponse struct {
	Result         string   `json:"result"`
	Score          float64  `json:"score"`
	ScoreIsDefault bool     `json:"score_is_default,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

// PromptToText runs the prompt-to-text lifecycle. The task variant is
// resolved exactly once, before resolution; an unknown task is a caller
// error and never reaches the backend.
func (o *Orchestrator) PromptToText(ctx context.Context, in PromptToTextInput) (*PromptToTextResponse, error) {
	mode, err := normalizeMode(in.Mode)
	if err != nil {
		return nil, err
	}
	spec, ok := prompts.Lookup(in.Task)
	if !ok {
		return nil, invalidInputf("unknown task %q: want refine, evaluate or simplify", in.Task)
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, invalidInputf("prompt is required")
	}
	if len(in.Prompt) > o.limits.MaxPayloadBytes {
		return nil, invalidInputf("prompt exceeds the %d byte limit", o.limits.MaxPayloadBytes)
	}
	if in.TargetLength < 0 {
		return nil, invalidInputf("target_length must not be negative")
	}

	decision := o.resolver.Resolve(mode, "")
	prompt := spec.Render(in.Prompt, in.TargetLength)
	promptTokens := o.countTokens(prompt)

	start := time.Now()
	result, err := o.invoke(ctx, decision, backend.CallRequest{
		Prompt:  prompt,
		Timeout: decision.Timeout,
	})
	o.record(ctx, "prompt-to-text", decision, promptTokens, result, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if spec.Task == prompts.TaskEvaluate {
		return parseEvaluation(result.Text), nil
	}
	return &PromptToTextResponse{Result: guardrails.Sanitize(result.Text)}, nil
}

var (
	// scoreRe matches "Score: 0.75", "score = 7/10" and similar forms.
	scoreRe = regexp.MustCompile(`(?i)\bscore\b\s*[:=]?\s*([0-9]*\.?[0-9]+)(?:\s*/\s*(10|100))?`)

	// bulletRe matches "-", "*", "•" and "1." style list markers.
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
)

// parseEvaluation extracts a numeric score and bulleted suggestions from the
// model's free-form evaluation text. A missing score pattern yields the 0.8
// default with ScoreIsDefault set.
func parseEvaluation(text string) *PromptToTextResponse {
	resp := &PromptToTextResponse{
		Result: guardrails.Sanitize(text),
		Score:  defaultEvaluateScore,
	}

	if m := scoreRe.FindStringSubmatch(text); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if m[2] != "" {
				denom, _ := strconv.ParseFloat(m[2], 64)
				value /= denom
			} else if value > 1 && value <= 10 {
				value /= 10
			} else if value > 10 && value <= 100 {
				value /= 100
			}
			if value >= 0 && value <= 1 {
				resp.Score = value
			} else {
				resp.ScoreIsDefault = true
			}
		} else {
			resp.ScoreIsDefault = true
		}
	} else {
		resp.ScoreIsDefault = true
	}

	for _, line := range strings.Split(text, "\n") {
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			resp.Suggestions = append(resp.Suggestions, strings.TrimSpace(m[1]))
		}
	}
	return resp
}
