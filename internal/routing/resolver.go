// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package routing selects model tiers per request and executes backend calls
// with one-shot fallback or concurrent shadow semantics. It owns no request
// state beyond the routing configuration; every decision is made fresh from
// the request's mode and detail tier.
package routing

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/storylens/storylens/internal/config"
)

// Mode is the caller-selected latency/quality tradeoff.
type Mode string

const (
	// ModeFast routes to the primary tier with the short timeout.
	ModeFast Mode = "fast"

	// ModeQuality routes to the fallback tier with the long timeout.
	ModeQuality Mode = "quality"
)

// ValidMode reports whether s names a known mode.
func ValidMode(s string) bool {
	return s == string(ModeFast) || s == string(ModeQuality)
}

// escalationRule is the built-in policy: quality requests asking for long
// detail always run on the fallback tier, regardless of the A/B draw.
const escalationRule = `mode == "quality" && detail == "long"`

// ruleEnv is the environment escalation expressions are evaluated against.
type ruleEnv struct {
	Mode   string `expr:"mode"`
	Detail string `expr:"detail"`
}

// Decision is the outcome of tier resolution for a single request.
type Decision struct {
	// Mode is the effective mode the decision was made for.
	Mode Mode

	// ChosenModel is the tier the primary call is addressed to.
	ChosenModel string

	// OtherModel is the tier not chosen; it is the shadow candidate.
	OtherModel string

	// Timeout is the client-enforced deadline for backend calls.
	Timeout time.Duration

	// ABTest is true when the A/B draw routed a fast-mode request to the
	// fallback tier.
	ABTest bool

	// Escalated is true when an escalation rule forced the fallback tier.
	Escalated bool
}

// Resolver derives per-request tier decisions from routing configuration.
// It is safe for concurrent use; the configuration may be swapped at runtime
// by the config watcher.
type Resolver struct {
	mu      sync.RWMutex
	routing config.RoutingConfig
	limits  config.LimitsConfig
	rules   []*vm.Program

	// draw produces one uniform sample in [0,1) per request. Overridable
	// for deterministic tests.
	draw func() float64
}

// NewResolver compiles the escalation rules and returns a ready resolver.
func NewResolver(cfg *config.Config) (*Resolver, error) {
	rules, err := compileRules(cfg.Routing.EscalationRules)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		routing: cfg.Routing,
		limits:  cfg.Limits,
		rules:   rules,
		draw:    rand.Float64,
	}, nil
}

// compileRules compiles the built-in escalation rule plus any configured ones.
func compileRules(configured []string) ([]*vm.Program, error) {
	sources := append([]string{escalationRule}, configured...)
	rules := make([]*vm.Program, 0, len(sources))
	for _, src := range sources {
		program, err := expr.Compile(src, expr.Env(ruleEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("routing: invalid escalation rule %q: %w", src, err)
		}
		rules = append(rules, program)
	}
	return rules, nil
}

// PrimaryModel returns the configured primary tier identifier.
func (r *Resolver) PrimaryModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.routing.PrimaryModel
}

// FallbackModel returns the configured fallback tier identifier.
func (r *Resolver) FallbackModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.routing.FallbackModel
}

// ShadowEnabled reports whether shadow execution is globally enabled.
func (r *Resolver) ShadowEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.routing.ShadowEnabled
}

// UpdateRouting swaps the routing configuration at runtime. Invalid
// escalation rules reject the whole update.
func (r *Resolver) UpdateRouting(routing config.RoutingConfig) error {
	rules, err := compileRules(routing.EscalationRules)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routing = routing
	r.rules = rules
	return nil
}

// SetDrawFunc replaces the A/B random source. For testing.
func (r *Resolver) SetDrawFunc(draw func() float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw = draw
}

// Resolve picks the tier and timeout for one request. Exactly one random
// draw is made per call; escalation rules take precedence over the draw.
func (r *Resolver) Resolve(mode Mode, detail string) Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := Decision{Mode: mode}
	abDraw := r.draw() < r.routing.ABTestRatio

	switch mode {
	case ModeQuality:
		d.ChosenModel = r.routing.FallbackModel
		d.Timeout = r.limits.QualityTimeout()
	default:
		d.ChosenModel = r.routing.PrimaryModel
		d.Timeout = r.limits.FastTimeout()
		if abDraw {
			d.ChosenModel = r.routing.FallbackModel
			d.ABTest = true
		}
	}

	if r.escalatesLocked(mode, detail) {
		d.ChosenModel = r.routing.FallbackModel
		d.Escalated = true
	}

	if d.ChosenModel == r.routing.FallbackModel {
		d.OtherModel = r.routing.PrimaryModel
	} else {
		d.OtherModel = r.routing.FallbackModel
	}
	return d
}

// escalatesLocked evaluates the escalation rules. A rule that fails at
// runtime is treated as not matching; the request must not be lost to a
// policy-expression bug.
func (r *Resolver) escalatesLocked(mode Mode, detail string) bool {
	env := ruleEnv{Mode: string(mode), Detail: detail}
	for _, rule := range r.rules {
		out, err := expr.Run(rule, env)
		if err != nil {
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			return true
		}
	}
	return false
}
