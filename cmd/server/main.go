// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the storylens server.
// The server accepts analyze-image and prompt-to-text requests, routes them
// across two generative-AI model tiers with fallback and shadow execution,
// and exposes aggregate request telemetry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/storylens/storylens/internal/api"
	"github.com/storylens/storylens/internal/backend"
	"github.com/storylens/storylens/internal/buildinfo"
	"github.com/storylens/storylens/internal/config"
	"github.com/storylens/storylens/internal/logging"
	"github.com/storylens/storylens/internal/metrics"
	"github.com/storylens/storylens/internal/orchestrator"
	"github.com/storylens/storylens/internal/routing"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("storylens %s (commit %s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	// Optional .env for local development; the config file remains authoritative.
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		log.Fatalf("storylens: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogsMaxTotalSizeMB); err != nil {
		return err
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		log.SetLevel(log.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}
	log.Infof("storylens %s (%s, built %s) starting", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	resolver, err := routing.NewResolver(cfg)
	if err != nil {
		return err
	}
	client := backend.NewClient(cfg.Backend)
	executor := routing.NewExecutor(client)
	store := metrics.NewStore(0, cfg.Routing.PrimaryModel, cfg.Routing.FallbackModel)
	orch, err := orchestrator.New(resolver, executor, store, cfg.Limits)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot-reload routing knobs (A/B ratio, shadow flag, escalation rules)
	// without a restart.
	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		if errUpdate := resolver.UpdateRouting(next.Routing); errUpdate != nil {
			log.Warnf("routing config update rejected: %v", errUpdate)
		}
	})
	if err != nil {
		return err
	}
	if err = watcher.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = watcher.Stop() }()

	engine := gin.New()
	engine.Use(gin.Recovery(), api.TraceMiddleware())
	api.NewHandler(orch, store, resolver).RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (primary tier %s, fallback tier %s)", srv.Addr, cfg.Routing.PrimaryModel, cfg.Routing.FallbackModel)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err = srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	log.Info("storylens stopped")
	_ = os.Stdout.Sync()
	return nil
}
