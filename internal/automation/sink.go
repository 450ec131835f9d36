package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"planswitch/internal/types"
)

// FanoutSink appends each result to every wrapped sink. A failing sink does
// not stop the others; the errors are joined.
type FanoutSink struct {
	sinks  []types.LogSink
	logger *slog.Logger
}

// NewFanoutSink creates a FanoutSink. Nil sinks are skipped.
func NewFanoutSink(logger *slog.Logger, sinks ...types.LogSink) *FanoutSink {
	if logger == nil {
		logger = slog.Default()
	}
	f := &FanoutSink{logger: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Append records result on every sink and joins their errors.
func (f *FanoutSink) Append(ctx context.Context, result types.RunResult, contextLabel string) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Append(ctx, result, contextLabel); err != nil {
			f.logger.ErrorContext(ctx, "failed to record run result",
				"run_id", result.ID,
				"context", contextLabel,
				"sink", fmt.Sprintf("%T", s),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoggingSink writes results to a structured logger.
type LoggingSink struct {
	logger *slog.Logger
}

// NewLoggingSink creates a LoggingSink.
func NewLoggingSink(logger *slog.Logger) *LoggingSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSink{logger: logger}
}

// Append logs result as one structured line. It never fails.
func (s *LoggingSink) Append(ctx context.Context, result types.RunResult, contextLabel string) error {
	level := slog.LevelInfo
	if !result.Success {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "run recorded",
		"run_id", result.ID,
		"context", contextLabel,
		"success", result.Success,
		"message", result.Message,
		"plan_name", result.PlanName,
		"psid", result.PlanCode,
		"started_at", result.Timestamp,
		"duration", result.Duration,
	)
	return nil
}
