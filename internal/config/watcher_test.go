// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherReload(t *testing.T) {
	t.Run("valid edit triggers the reload callback", func(t *testing.T) {
		path := writeConfig(t, minimalConfig)

		reloaded := make(chan *Config, 1)
		w, err := NewWatcher(path, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
		if err != nil {
			t.Fatalf("NewWatcher: %v", err)
		}
		defer func() { _ = w.Stop() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := w.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}

		updated := minimalConfig + "\nrouting:\n  primary-model: relay-next\n  fallback-model: relay-pro\n"
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}

		select {
		case cfg := <-reloaded:
			if cfg.Routing.PrimaryModel != "relay-next" {
				t.Errorf("expected relay-next after reload, got %q", cfg.Routing.PrimaryModel)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("reload callback never fired")
		}
	})

	t.Run("broken edit does not trigger the callback", func(t *testing.T) {
		path := writeConfig(t, minimalConfig)

		reloaded := make(chan *Config, 1)
		w, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
		if err != nil {
			t.Fatalf("NewWatcher: %v", err)
		}
		defer func() { _ = w.Stop() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := w.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}

		if err := os.WriteFile(path, []byte("backend: ["), 0o644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}

		select {
		case <-reloaded:
			t.Fatal("callback fired for an invalid config")
		case <-time.After(600 * time.Millisecond):
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		w, err := NewWatcher(writeConfig(t, minimalConfig), func(*Config) {})
		if err != nil {
			t.Fatalf("NewWatcher: %v", err)
		}
		if err := w.Stop(); err != nil {
			t.Fatalf("first Stop: %v", err)
		}
		if err := w.Stop(); err != nil {
			t.Fatalf("second Stop: %v", err)
		}
	})
}
