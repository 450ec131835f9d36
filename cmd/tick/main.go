// Package main is the Lambda form of the trigger scheduler.
//
// An EventBridge rule invokes the function once a minute. Each invocation is
// exactly one scheduler tick evaluated at the event time, so a deployment can
// run the API without its in-process loop (SCHEDULER_ENABLED=false) and let
// EventBridge own the clock instead.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"planswitch/internal/automation"
	"planswitch/internal/config"
	"planswitch/internal/db"
	"planswitch/internal/external"
	"planswitch/internal/scheduler"
	"planswitch/internal/security"
	"planswitch/internal/types"
)

// Ticker evaluates the schedule at one instant. *scheduler.Trigger
// satisfies it.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) scheduler.TickReport
}

// Handler adapts a Ticker to scheduled events.
type Handler struct {
	Ticker Ticker
	Logger *slog.Logger
	Now    func() time.Time
}

// Handle runs one tick at the event time, falling back to the wall clock
// for hand-crafted test events without a time. The instant is truncated to
// the minute so a late invocation still matches its own minute.
func (h *Handler) Handle(ctx context.Context, event events.CloudWatchEvent) (scheduler.TickReport, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := h.Now
	if now == nil {
		now = time.Now
	}

	at := event.Time
	if at.IsZero() {
		at = now()
	}
	at = at.Truncate(time.Minute)

	logger.InfoContext(ctx, "tick invoked",
		"event_id", event.ID,
		"event_time", at.UTC().Format(time.RFC3339),
	)

	report := h.Ticker.Tick(ctx, at)

	logger.InfoContext(ctx, "tick complete",
		"skipped", report.Skipped,
		"reason", report.Reason,
		"evaluated", report.Evaluated,
		"fired", report.Fired,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"invalid", report.Invalid,
	)
	return report, nil
}

func main() {
	cfg, err := config.LoadConfig(config.SecretProviderFromEnv())
	if err != nil {
		// No configured logger yet.
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("tick Lambda initializing (cold start)", "build", cfg.Build.String())

	handler, err := newHandler(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize tick handler", "error", err)
		os.Exit(1)
	}

	lambda.Start(handler.Handle)
}

// newHandler wires the trigger. ADMIN_API_KEY is not needed here.
func newHandler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Handler, error) {
	pool, err := db.OpenPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	sealer, err := security.NewSealer(cfg.Security.SealingKey)
	if err != nil {
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	registry, err := external.NewSinkRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating result sinks: %w", err)
	}
	sinks := append([]types.LogSink{db.NewHistoryRepository(pool)}, registry.Sinks()...)

	trigger := scheduler.NewTrigger(scheduler.TriggerConfig{
		Configs:       db.NewSettingsRepository(pool, sealer),
		Schedules:     db.NewScheduleRepository(pool),
		Sink:          automation.NewFanoutSink(logger, sinks...),
		Engine:        automation.NewEngine(automation.ConfigFromPortal(cfg.Portal, logger)),
		MaxConcurrent: cfg.Scheduler.MaxConcurrentRuns,
		Logger:        logger,
	})

	return &Handler{Ticker: trigger, Logger: logger}, nil
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
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
