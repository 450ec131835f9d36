package types

import "context"

// ConfigProvider supplies the single stored run configuration. A nil config
// with a nil error means no configuration exists yet.
type ConfigProvider interface {
	GetRunConfig(ctx context.Context) (*RunConfig, error)
}

// ScheduleProvider supplies the currently enabled schedule entries.
type ScheduleProvider interface {
	GetEnabledEntries(ctx context.Context) ([]ScheduleEntry, error)
}

// LogSink records a run outcome. contextLabel distinguishes the trigger
// (e.g. "manual", "scheduled"). Implementations must be safe for concurrent
// use; each call is a single atomic append.
type LogSink interface {
	Append(ctx context.Context, result RunResult, contextLabel string) error
}

// Trigger labels passed to LogSink.Append.
const (
	LabelManual    = "manual"
	LabelScheduled = "scheduled"
	LabelCLI       = "cli"
)
