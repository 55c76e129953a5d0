package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/collectline/dunlin/internal/api"
	"github.com/collectline/dunlin/internal/bus"
	"github.com/collectline/dunlin/internal/cache"
	"github.com/collectline/dunlin/internal/dispatch"
	"github.com/collectline/dunlin/internal/domain"
	"github.com/collectline/dunlin/internal/filter"
	"github.com/collectline/dunlin/internal/repository"
	"github.com/collectline/dunlin/internal/scheduler"
	"github.com/collectline/dunlin/internal/strategy"
	"github.com/collectline/dunlin/internal/worker"
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
	if os.Getenv("DUNLIN_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting dunlin",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("DUNLIN_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"dispatch", cfg.Dispatch.BaseURL,
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

	// Initialize dispatch engine client
	engine := dispatch.New(cfg.Dispatch)
	slog.Info("dispatch client initialized", "base_url", cfg.Dispatch.BaseURL)

	// Initialize filter field catalog loader and expression validator
	loader := filter.NewLoader(repo, cacheImpl, cfg.Cache.LocalTTL)
	validator, err := filter.NewValidator()
	if err != nil {
		slog.Error("failed to initialize expression validator", "error", err)
		os.Exit(1)
	}
	policy := filter.PolicyFromString(cfg.Compiler.IncompletePolicy)

	// Initialize trigger and scheduler
	trigger := strategy.NewTrigger(repo, busImpl, engine)
	sched := scheduler.New(repo, func(ctx context.Context, ruleID string, t domain.TriggerType) error {
		_, err := trigger.Run(ctx, ruleID, t)
		return err
	})

	if err := sched.Sync(ctx); err != nil {
		slog.Error("failed to sync scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()
	slog.Info("scheduler started", "scheduled_rules", sched.Count())

	// Initialize status observer
	pollInterval := time.Duration(cfg.Dispatch.PollIntervalMs) * time.Millisecond
	observer := worker.New(busImpl, repo, engine, engine, pollInterval)
	if err := observer.Start(ctx); err != nil {
		slog.Error("failed to start observer", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	handler := api.NewHandler(repo, cacheImpl, busImpl, loader, validator, policy, trigger, sched, engine, Version)
	srv := api.NewServer(cfg.Server, handler)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("dunlin is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	sched.Stop()
	observer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("dunlin shutdown complete")
}

// applyEnvOverrides lets deployment environments tune individual settings
// without a config file.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("DUNLIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DUNLIN_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("DUNLIN_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("DUNLIN_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("DUNLIN_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("DUNLIN_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("DUNLIN_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("DUNLIN_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("DUNLIN_DISPATCH_URL"); v != "" {
		cfg.Dispatch.BaseURL = v
	}
	if v := os.Getenv("DUNLIN_POLL_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Dispatch.PollIntervalMs = ms
		}
	}
	if v := os.Getenv("DUNLIN_INCOMPLETE_POLICY"); v != "" {
		cfg.Compiler.IncompletePolicy = v
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔════════════════════════════════════════════╗")
	fmt.Println("  ║                 DUNLIN                     ║")
	fmt.Println("  ║     Collections Strategy Engine            ║")
	fmt.Println("  ║     Every case, the right channel.         ║")
	fmt.Println("  ╚════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET    /fields                   - Filter field catalog")
	fmt.Println("    GET    /master-data/{category}   - List master data")
	fmt.Println("    GET    /templates?channel=SMS    - List templates")
	fmt.Println("    GET    /strategies               - List strategies")
	fmt.Println("    POST   /strategies               - Create a strategy")
	fmt.Println("    PUT    /strategies/{id}          - Update a strategy")
	fmt.Println("    DELETE /strategies/{id}          - Delete a strategy")
	fmt.Println("    POST   /strategies/{id}/trigger  - Run a strategy now")
	fmt.Println("    GET    /strategies/{id}/runs     - Execution history")
	fmt.Println("    GET    /runs/{id}                - Get a run")
	fmt.Println("    POST   /batches                  - Submit a case file")
	fmt.Println("    GET    /batches/{id}             - Get a batch job")
	fmt.Println("    GET    /health                   - Health check")
	fmt.Println()
}
