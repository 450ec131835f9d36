// Package scheduler fires plan-change runs from stored time-of-day rules.
//
// A Trigger owns one periodic timer. On every tick it loads the run
// configuration and the enabled schedule entries, renders the tick instant in
// each entry's own timezone and runs the engine for every entry whose
// hour:minute matches. Entries are evaluated independently on every tick:
// nothing suppresses an entry that already fired this minute, nothing merges
// entries sharing a trigger time, and a slow tick may overlap the next one.
//
// A tick that is delayed past an entry's minute simply misses it. There is no
// catch-up.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"planswitch/internal/types"
)

// DefaultInterval is the tick period. Entries match on hour:minute, so any
// other period would evaluate a minute zero or several times.
const DefaultInterval = time.Minute

// DefaultMaxConcurrentRuns bounds how many entries of one tick run at once.
const DefaultMaxConcurrentRuns = 4

// Runner executes one plan-change run. *automation.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, cfg types.RunConfig) types.RunResult
}

// TriggerConfig wires a Trigger to its collaborators.
type TriggerConfig struct {
	Configs   types.ConfigProvider
	Schedules types.ScheduleProvider
	Sink      types.LogSink
	Engine    Runner

	// Interval overrides DefaultInterval. Tests only.
	Interval      time.Duration
	MaxConcurrent int
	Now           func() time.Time
	Logger        *slog.Logger
}

// TickReport summarizes one tick.
type TickReport struct {
	At time.Time `json:"at"`
	// Skipped is set when the tick did nothing, e.g. no run configuration is
	// stored yet. Reason says why.
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`

	Evaluated int `json:"evaluated"`
	Fired     int `json:"fired"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Invalid counts entries whose timezone could not be resolved.
	Invalid int `json:"invalid"`
}

// Trigger is the scheduler lifecycle object. Start and Stop are idempotent.
type Trigger struct {
	configs   types.ConfigProvider
	schedules types.ScheduleProvider
	sink      types.LogSink
	engine    Runner

	interval      time.Duration
	maxConcurrent int
	now           func() time.Time
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	ticks   sync.WaitGroup
}

// NewTrigger creates a stopped Trigger.
func NewTrigger(cfg TriggerConfig) *Trigger {
	t := &Trigger{
		configs:       cfg.Configs,
		schedules:     cfg.Schedules,
		sink:          cfg.Sink,
		engine:        cfg.Engine,
		interval:      cfg.Interval,
		maxConcurrent: cfg.MaxConcurrent,
		now:           cfg.Now,
		logger:        cfg.Logger,
	}
	if t.interval <= 0 {
		t.interval = DefaultInterval
	}
	if t.maxConcurrent <= 0 {
		t.maxConcurrent = DefaultMaxConcurrentRuns
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Start launches the tick loop. It returns false, and changes nothing, if the
// loop is already running.
func (t *Trigger) Start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		t.logger.InfoContext(ctx, "scheduler already started; ignoring start request")
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true

	go t.loop(loopCtx, t.done)

	t.logger.InfoContext(ctx, "scheduler started",
		"interval", t.interval,
		"max_concurrent_runs", t.maxConcurrent,
	)
	return true
}

// Stop halts the tick loop and waits for in-flight ticks to finish. Runs
// that already started are allowed to complete.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	cancel, done := t.cancel, t.done
	t.running = false
	t.mu.Unlock()

	cancel()
	<-done
	t.ticks.Wait()
	t.logger.Info("scheduler stopped")
}

// loopExited clears the running state when the loop ends without Stop,
// e.g. because the context given to Start was cancelled.
func (t *Trigger) loopExited(done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.done != done {
		return
	}
	t.running = false
	t.cancel()
	t.logger.Warn("scheduler loop exited: start context cancelled")
}

// Running reports whether the tick loop is active.
func (t *Trigger) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Trigger) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer t.loopExited(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Ticks are not serialized; a slow tick may still be running
			// when the next one starts.
			t.ticks.Add(1)
			go func(at time.Time) {
				defer t.ticks.Done()
				t.Tick(ctx, at)
			}(t.now())
		}
	}
}

// Tick evaluates every enabled entry against now. It never returns an error:
// provider failures skip the tick and per-entry failures are logged and
// counted.
func (t *Trigger) Tick(ctx context.Context, now time.Time) TickReport {
	report := TickReport{At: now}

	cfg, err := t.configs.GetRunConfig(ctx)
	if err != nil {
		t.logger.ErrorContext(ctx, "scheduler tick: failed to load run configuration", "error", err)
		report.Skipped, report.Reason = true, "run configuration unavailable"
		return report
	}
	if cfg == nil {
		t.logger.DebugContext(ctx, "scheduler tick: no run configuration stored; skipping")
		report.Skipped, report.Reason = true, "no run configuration"
		return report
	}

	entries, err := t.schedules.GetEnabledEntries(ctx)
	if err != nil {
		t.logger.ErrorContext(ctx, "scheduler tick: failed to load schedule entries", "error", err)
		report.Skipped, report.Reason = true, "schedule entries unavailable"
		return report
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(t.maxConcurrent)

	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		g.Go(func() error {
			outcome := t.evaluate(ctx, now, *cfg, entry)

			mu.Lock()
			defer mu.Unlock()
			report.Evaluated++
			switch outcome {
			case outcomeInvalid:
				report.Invalid++
			case outcomeSucceeded:
				report.Fired++
				report.Succeeded++
			case outcomeFailed:
				report.Fired++
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if report.Fired > 0 || report.Invalid > 0 {
		t.logger.InfoContext(ctx, "scheduler tick complete",
			"at", now.UTC().Format(time.RFC3339),
			"evaluated", report.Evaluated,
			"fired", report.Fired,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"invalid", report.Invalid,
		)
	}
	return report
}

type outcome int

const (
	outcomeIdle outcome = iota
	outcomeInvalid
	outcomeSucceeded
	outcomeFailed
)

// evaluate checks one entry and, on a match, runs and records it. A panic in
// the engine or the sink is confined to this entry.
func (t *Trigger) evaluate(ctx context.Context, now time.Time, cfg types.RunConfig, entry types.ScheduleEntry) (result outcome) {
	logger := t.logger.With("schedule_id", entry.ID, "timezone", entry.Timezone, "psid", entry.PlanCode)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "scheduled run panicked", "panic", r)
			result = outcomeFailed
		}
	}()

	loc, err := entry.Location()
	if err != nil {
		logger.ErrorContext(ctx, "skipping schedule entry with unresolvable timezone", "error", err)
		return outcomeInvalid
	}
	if !entry.Matches(now, loc) {
		return outcomeIdle
	}

	logger.InfoContext(ctx, "schedule entry matched; starting run",
		"local_time", now.In(loc).Format("15:04"),
		"plan_name", entry.PlanName,
	)

	// A started run is not cancelled by scheduler shutdown.
	runCtx := context.WithoutCancel(ctx)
	res := t.engine.Run(runCtx, cfg.WithPlanCode(entry.PlanCode))
	res.Message = fmt.Sprintf("[%s %s] %s", types.LabelScheduled, entry.Timezone, res.Message)

	if t.sink != nil {
		if err := t.sink.Append(runCtx, res, types.LabelScheduled); err != nil {
			logger.ErrorContext(ctx, "failed to record scheduled run", "run_id", res.ID, "error", err)
		}
	}

	if res.Success {
		return outcomeSucceeded
	}
	return outcomeFailed
}
