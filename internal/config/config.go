// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the storylens server.
// It handles loading and parsing YAML configuration files, and provides
// structured access to application settings including server bind options,
// backend credentials, model-tier routing policy, and request limits.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces. Use "127.0.0.1" for local-only access.
	Host string `yaml:"host" json:"-"`

	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"-"`

	// Debug enables or disables debug-level logging and other debug features.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB limits the total size (in MB) of log files under the logs directory.
	// Set to 0 to disable the limit.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// Backend holds the generative backend endpoint and credential settings.
	Backend BackendConfig `yaml:"backend" json:"backend"`

	// Routing controls model-tier selection behavior.
	Routing RoutingConfig `yaml:"routing" json:"routing"`

	// Limits defines request payload and timeout limits.
	Limits LimitsConfig `yaml:"limits" json:"limits"`
}

// BackendConfig holds the generative backend endpoint settings.
type BackendConfig struct {
	// BaseURL is the root URL of the generative backend API.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// APIKey authenticates outbound backend calls. The STORYLENS_API_KEY
	// environment variable takes precedence when set.
	APIKey string `yaml:"api-key" json:"-"`

	// ModelVersion is an optional preferred model-version hint forwarded
	// to the backend with every call.
	ModelVersion string `yaml:"model-version" json:"model-version"`
}

// RoutingConfig controls primary/fallback model-tier selection.
type RoutingConfig struct {
	// PrimaryModel is the default tier used for most requests.
	PrimaryModel string `yaml:"primary-model" json:"primary-model"`

	// FallbackModel is the higher-capability tier used on failure or
	// quality escalation.
	FallbackModel string `yaml:"fallback-model" json:"fallback-model"`

	// ABTestRatio is the probability (0.0 to 1.0) of routing a fast-mode
	// request to the fallback tier for experimentation. One random draw
	// is made per request.
	ABTestRatio float64 `yaml:"ab-test-ratio" json:"ab-test-ratio"`

	// ShadowEnabled toggles shadow execution. When true and the resolved
	// primary and fallback tiers differ, each request additionally runs a
	// non-authoritative shadow call for comparative telemetry.
	ShadowEnabled bool `yaml:"shadow-enabled" json:"shadow-enabled"`

	// EscalationRules are boolean expressions evaluated against the request
	// environment (mode, detail). When any rule evaluates to true the
	// fallback tier is forced regardless of the A/B draw. The built-in rule
	// `mode == "quality" && detail == "long"` is always active.
	EscalationRules []string `yaml:"escalation-rules" json:"escalation-rules"`
}

// LimitsConfig defines request payload and timeout limits.
type LimitsConfig struct {
	// MaxPayloadBytes caps the size of inline or fetched image data.
	MaxPayloadBytes int `yaml:"max-payload-bytes" json:"max-payload-bytes"`

	// FastTimeoutMs is the client-enforced backend timeout for fast-mode requests.
	FastTimeoutMs int `yaml:"fast-timeout-ms" json:"fast-timeout-ms"`

	// QualityTimeoutMs is the client-enforced backend timeout for quality-mode requests.
	QualityTimeoutMs int `yaml:"quality-timeout-ms" json:"quality-timeout-ms"`
}

// FastTimeout returns the fast-mode timeout as a duration.
func (l LimitsConfig) FastTimeout() time.Duration {
	return time.Duration(l.FastTimeoutMs) * time.Millisecond
}

// QualityTimeout returns the quality-mode timeout as a duration.
func (l LimitsConfig) QualityTimeout() time.Duration {
	return time.Duration(l.QualityTimeoutMs) * time.Millisecond
}

// LoadConfig reads the configuration file from the given path and returns
// a Config populated with defaults for any absent keys.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment override wins over the file-provided key.
	if key := strings.TrimSpace(os.Getenv("STORYLENS_API_KEY")); key != "" {
		cfg.Backend.APIKey = key
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with all defaults applied. Absent YAML keys
// keep these values after unmarshal.
func defaultConfig() *Config {
	return &Config{
		Port: 8317,
		Routing: RoutingConfig{
			PrimaryModel:  "relay-flash",
			FallbackModel: "relay-pro",
			ABTestRatio:   0.0,
			ShadowEnabled: false,
		},
		Limits: LimitsConfig{
			MaxPayloadBytes:  8 << 20, // 8 MB
			FastTimeoutMs:    8000,
			QualityTimeoutMs: 30000,
		},
	}
}

// Validate checks the configuration for values that would make the server
// unable to route requests.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("config: backend.base-url is required")
	}
	if strings.TrimSpace(c.Routing.PrimaryModel) == "" {
		return fmt.Errorf("config: routing.primary-model is required")
	}
	if strings.TrimSpace(c.Routing.FallbackModel) == "" {
		return fmt.Errorf("config: routing.fallback-model is required")
	}
	if c.Routing.ABTestRatio < 0 || c.Routing.ABTestRatio > 1 {
		return fmt.Errorf("config: routing.ab-test-ratio must be between 0.0 and 1.0, got %v", c.Routing.ABTestRatio)
	}
	if c.Limits.MaxPayloadBytes <= 0 {
		return fmt.Errorf("config: limits.max-payload-bytes must be positive")
	}
	if c.Limits.FastTimeoutMs <= 0 || c.Limits.QualityTimeoutMs <= 0 {
		return fmt.Errorf("config: limits timeouts must be positive")
	}
	return nil
}
