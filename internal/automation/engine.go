// Package automation composes the portal flows into a single plan-change run.
//
// Engine.Run is the only entry point collaborators use. It never returns an
// error: every failure, including a panic inside a flow, is folded into the
// returned RunResult.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"planswitch/internal/plans"
	"planswitch/internal/portal"
	"planswitch/internal/types"
)

// SuccessMessage is the RunResult message of a confirmed change.
const SuccessMessage = "Plan changed successfully"

// DefaultRequestTimeout applies when a RunConfig carries no timeout.
const DefaultRequestTimeout = 30 * time.Second

// Runner executes one plan-change run.
type Runner interface {
	Run(ctx context.Context, cfg types.RunConfig) types.RunResult
}

// EngineConfig configures an Engine. Every field is optional.
type EngineConfig struct {
	// Breaker is shared by all runs of the engine.
	Breaker    *portal.Breaker
	Endpoints  portal.Endpoints
	Classifier portal.Classifier
	// DefaultTimeout replaces a zero RunConfig.RequestTimeout.
	DefaultTimeout time.Duration
	// Transport is handed to every Session; nil uses the default transport.
	Transport http.RoundTripper
	Logger    *slog.Logger

	Now   func() time.Time
	NewID func() string
}

// Engine runs Login then Confirm against a fresh Session per call. It holds
// no per-run state, so concurrent calls are independent.
type Engine struct {
	breaker        *portal.Breaker
	endpoints      portal.Endpoints
	classifier     portal.Classifier
	defaultTimeout time.Duration
	transport      http.RoundTripper
	logger         *slog.Logger
	now            func() time.Time
	newID          func() string
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		breaker:        cfg.Breaker,
		endpoints:      cfg.Endpoints,
		classifier:     cfg.Classifier,
		defaultTimeout: cfg.DefaultTimeout,
		transport:      cfg.Transport,
		logger:         cfg.Logger,
		now:            cfg.Now,
		newID:          cfg.NewID,
	}
	if e.classifier == nil {
		e.classifier = portal.NewKeywordClassifier()
	}
	if e.defaultTimeout <= 0 {
		e.defaultTimeout = DefaultRequestTimeout
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.New().String() }
	}
	return e
}

// Run performs one plan change. The result timestamp is the instant the run
// began. No retries are attempted and nothing is rolled back on failure.
func (e *Engine) Run(ctx context.Context, cfg types.RunConfig) (result types.RunResult) {
	start := e.now()
	id := e.newID()
	ctx = types.WithRunID(ctx, id)

	result = types.RunResult{ID: id, Timestamp: start}
	logger := e.logger.With("run_id", id, "psid", cfg.TargetPlanCode)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "automation run panicked", "panic", r)
			result = types.RunResult{
				ID:        id,
				Success:   false,
				Message:   fmt.Sprintf("internal error: %v", r),
				Timestamp: start,
			}
		}
		result.Duration = e.now().Sub(start)
	}()

	logger.InfoContext(ctx, "automation run started")
	if err := e.run(ctx, cfg); err != nil {
		logger.WarnContext(ctx, "automation run failed", "error", err)
		result.Message = types.Message(err)
		return result
	}

	result.Success = true
	result.Message = SuccessMessage
	result.PlanCode = cfg.TargetPlanCode
	result.PlanName = plans.NameForCode(cfg.TargetPlanCode)
	logger.InfoContext(ctx, "automation run succeeded", "plan_name", result.PlanName)
	return result
}

func (e *Engine) run(ctx context.Context, cfg types.RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidURL, "invalid portal base address", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	session, err := portal.NewSession(portal.SessionConfig{
		Timeout:   timeout,
		Breaker:   e.breaker,
		Transport: e.transport,
		Logger:    e.logger,
	})
	if err != nil {
		return err
	}
	client := portal.NewClient(portal.ClientConfig{
		Session:    session,
		BaseURL:    base,
		Endpoints:  e.endpoints,
		Classifier: e.classifier,
		Logger:     e.logger,
	})

	if err := client.Login(ctx, cfg.Username, cfg.Password, cfg.IDs); err != nil {
		return err
	}
	return client.Confirm(ctx, cfg)
}
