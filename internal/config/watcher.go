// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher watches the configuration file and invokes a reload callback when
// it changes. Only a successfully parsed and validated file triggers the
// callback; a broken edit keeps the previous configuration in effect.
type Watcher struct {
	configPath string
	reload     func(*Config)

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stopped chan struct{}
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(configPath string, reload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		configPath: configPath,
		reload:     reload,
		fsw:        fsw,
		stopped:    make(chan struct{}),
	}, nil
}

// Start begins watching. It watches the parent directory rather than the file
// itself so that editors which replace the file (rename + create) are still
// observed. Start returns immediately; watching continues until Stop or
// context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if err := w.fsw.Add(dir); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

// Stop terminates the watcher and releases the underlying fsnotify resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.stopped:
		return nil
	default:
		close(w.stopped)
	}
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	// Debounce rapid write bursts from editors and atomic-save tools.
	var pending *time.Timer
	fire := func() {
		cfg, err := LoadConfig(w.configPath)
		if err != nil {
			log.Warnf("config watcher: reload skipped: %v", err)
			return
		}
		log.Infof("config watcher: configuration reloaded from %s", w.configPath)
		w.reload(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopped:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, fire)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher: %v", err)
		}
	}
}
