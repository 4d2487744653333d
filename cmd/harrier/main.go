// Harrier - Entity risk assessment that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/assess"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/flagrules"
	"github.com/opensource-finance/harrier/internal/match"
	"github.com/opensource-finance/harrier/internal/quota"
	"github.com/opensource-finance/harrier/internal/refdata"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Matcher and load reference datasets
	matcher, err := match.New(cfg.Matcher)
	if err != nil {
		slog.Error("failed to initialize matcher", "error", err)
		os.Exit(1)
	}

	loader := refdata.NewLoader(repo, matcher)
	if err := loader.LoadAll(ctx, GlobalTenantID); err != nil {
		slog.Error("failed to load reference datasets", "error", err)
		os.Exit(1)
	}
	slog.Info("matcher initialized", "datasets", len(loader.Datasets()))

	// Initialize Scoring Engine
	scorer, err := scoring.New(cfg.Scoring)
	if err != nil {
		slog.Error("failed to initialize scoring engine", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring engine initialized")

	// Initialize Flag Rule Engine
	flags, err := flagrules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize flag rule engine", "error", err)
		os.Exit(1)
	}
	defer flags.Close()

	// Load rules from database, falling back to the builtin set
	if err := loadRulesFromDatabase(ctx, repo, flags); err != nil {
		slog.Error("failed to load flag rules", "error", err)
		os.Exit(1)
	}
	slog.Info("flag rule engine initialized", "rules_count", flags.RulesCount())

	// Initialize Quota Service
	quotaSvc := quota.NewService(cacheImpl, cfg.Providers)
	slog.Info("quota service initialized", "limit", cfg.Providers.QuotaLimit)

	// Initialize Assessment Service
	service := assess.NewService(matcher, scorer, cfg.Providers).
		WithFlagRules(flags).
		WithQuota(quotaSvc).
		WithCache(cacheImpl).
		WithRepository(repo)
	slog.Info("assessment service initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, service)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
			// Could parse comma-separated list here
			tenantIDs = []string{envTenants}
		}

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, service, flags, loader, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

// GlobalTenantID is used for rules and datasets that apply to all tenants.
const GlobalTenantID = "*"

// loadRulesFromDatabase loads flag rules from the database into the engine.
// Falls back to the builtin rule set when the database has none.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *flagrules.Engine) error {
	dbRules, err := repo.ListFlagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list flag rules from database", "error", err)
		dbRules = nil
	}

	if len(dbRules) > 0 {
		slog.Info("loading flag rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no flag rules in database, loading builtin rules")
	return engine.LoadRules(flagrules.BuiltinRules())
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  Harrier - Entity Risk Assessment Engine")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /assess                   - Assess an entity")
	fmt.Println("    POST /assess/batch             - Assess entities in bulk")
	fmt.Println("    GET  /assessments              - List assessments")
	fmt.Println("    GET  /assessments/{id}         - Get assessment by ID")
	fmt.Println("    GET  /assessments/{id}/export  - Flat key/value export")
	fmt.Println("    GET  /datasets                 - List reference datasets")
	fmt.Println("    PUT  /datasets/{dataset}       - Replace a reference dataset")
	fmt.Println("    POST /datasets/reload          - Re-index datasets from the database")
	fmt.Println("    GET  /rules                    - List flag rules")
	fmt.Println("    POST /rules                    - Create a flag rule")
	fmt.Println("    POST /rules/reload             - Hot-reload rules from database")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
