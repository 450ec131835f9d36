package external

import (
	"context"
	"log/slog"

	"planswitch/internal/types"
)

// StubSink implements types.LogSink by logging the outcome. Local
// development uses it in place of the SQS and CloudWatch sinks so the process
// boots without AWS credentials.
type StubSink struct {
	name   string
	logger *slog.Logger
}

// NewStubSink creates a stub standing in for the named sink.
func NewStubSink(name string, logger *slog.Logger) *StubSink {
	return &StubSink{name: name, logger: logger}
}

// Append logs the call and discards the result.
func (s *StubSink) Append(ctx context.Context, result types.RunResult, contextLabel string) error {
	s.logger.InfoContext(ctx, "stub: Append called",
		"sink", s.name,
		"run_id", result.ID,
		"success", result.Success,
		"context", contextLabel,
	)
	return nil
}
