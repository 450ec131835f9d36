// Package main is the long-running PlanSwitch service: the operator HTTP API
// plus the in-process trigger scheduler, sharing one engine, one database
// pool and one set of result sinks.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"planswitch/internal/api/handlers"
	"planswitch/internal/automation"
	"planswitch/internal/config"
	"planswitch/internal/core"
	"planswitch/internal/db"
	"planswitch/internal/external"
	"planswitch/internal/scheduler"
	"planswitch/internal/security"
	"planswitch/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.RequireAdminAPIKey(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("planswitch starting",
		"environment", cfg.Environment,
		"build", cfg.Build.String(),
		"port", cfg.Server.Port,
		"scheduler_enabled", cfg.Scheduler.Enabled,
	)

	ctx := context.Background()

	pool, err := db.OpenPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		logger.Info("database schema applied")
	}

	sealer, err := security.NewSealer(cfg.Security.SealingKey)
	if err != nil {
		return fmt.Errorf("creating sealer: %w", err)
	}

	settings := db.NewSettingsRepository(pool, sealer)
	schedules := db.NewScheduleRepository(pool)
	history := db.NewHistoryRepository(pool)

	registry, err := external.NewSinkRegistry(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating result sinks: %w", err)
	}
	sink := automation.NewFanoutSink(logger, append([]types.LogSink{history}, registry.Sinks()...)...)

	engine := automation.NewEngine(automation.ConfigFromPortal(cfg.Portal, logger))

	trigger := scheduler.NewTrigger(scheduler.TriggerConfig{
		Configs:       settings,
		Schedules:     schedules,
		Sink:          sink,
		Engine:        engine,
		MaxConcurrent: cfg.Scheduler.MaxConcurrentRuns,
		Logger:        logger,
	})
	if cfg.Scheduler.Enabled {
		trigger.Start(ctx)
	}
	defer trigger.Stop()

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = healthProbes(pool, trigger, cfg.Scheduler.Enabled)

	planHandler := handlers.NewPlanHandler()
	runHandler := handlers.NewRunHandler(settings, engine, sink, history, srv.Validator, logger)
	scheduleHandler := handlers.NewScheduleHandler(schedules)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { r.Route("/plans", planHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/runs", runHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/schedules", scheduleHandler.RegisterRoutes) },
	)
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// secretProvider returns nil in local mode, where LoadConfig never resolves
// pointers.
func secretProvider() config.SecretProvider {
	if os.Getenv("APP_ENV") == "local" {
		return nil
	}
	return config.SecretProviderFromEnv()
}

func healthProbes(pool *pgxpool.Pool, trigger *scheduler.Trigger, schedulerEnabled bool) []core.HealthProbe {
	probes := []core.HealthProbe{
		core.ProbeFunc{Label: "database", Fn: pool.Ping},
	}
	if schedulerEnabled {
		probes = append(probes, core.ProbeFunc{Label: "scheduler", Fn: func(context.Context) error {
			if !trigger.Running() {
				return errors.New("scheduler is not running")
			}
			return nil
		}})
	}
	return probes
}

func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A manual run holds the response open for up to four portal
		// requests.
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
