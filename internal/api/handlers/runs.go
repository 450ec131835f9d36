package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"planswitch/internal/core"
	"planswitch/internal/db"
	"planswitch/internal/plans"
	"planswitch/internal/types"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Runner executes one plan-change run. *automation.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, cfg types.RunConfig) types.RunResult
}

// HistoryLister reads recorded runs. *db.HistoryRepository satisfies it.
type HistoryLister interface {
	ListRecent(ctx context.Context, limit int) ([]db.HistoryEntry, error)
}

// RunRequest is the body of POST /v1/runs. Exactly one selector is needed;
// plan_code wins when both are given.
type RunRequest struct {
	Plan     string `json:"plan" validate:"required_without=PlanCode"`
	PlanCode string `json:"plan_code" validate:"omitempty,plan_code"`
}

// RunHandler triggers manual runs and lists history.
type RunHandler struct {
	configs   types.ConfigProvider
	engine    Runner
	sink      types.LogSink
	history   HistoryLister
	validator *core.Validator
	logger    *slog.Logger
}

// NewRunHandler creates a RunHandler. A nil logger uses slog.Default.
func NewRunHandler(
	configs types.ConfigProvider,
	engine Runner,
	sink types.LogSink,
	history HistoryLister,
	val *core.Validator,
	logger *slog.Logger,
) *RunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunHandler{
		configs:   configs,
		engine:    engine,
		sink:      sink,
		history:   history,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the run endpoints under /v1/runs.
func (h *RunHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
}

// HandleCreate handles POST /v1/runs.
//
//  1. Decode and validate the selector; resolve a plan name via the catalog.
//  2. Load the stored run configuration (404 when none exists).
//  3. Run the engine detached from the request context so a disconnecting
//     client cannot abort a half-submitted plan change.
//  4. Append the result with label "manual" and return it.
//
// A failed run is still 200: the RunResult carries the outcome.
func (h *RunHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	code := req.PlanCode
	if code == "" {
		entry, err := plans.Lookup(req.Plan)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		code = entry.CodeString()
	}

	cfg, err := h.configs.GetRunConfig(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if cfg == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundRunConfig, "no portal settings have been stored", nil))
		return
	}

	ctx := context.WithoutCancel(r.Context())
	result := h.engine.Run(ctx, cfg.WithPlanCode(code))

	if err := h.sink.Append(ctx, result, types.LabelManual); err != nil {
		h.logger.ErrorContext(ctx, "failed to record manual run",
			"run_id", result.ID,
			"error", err,
		)
	}

	h.logger.InfoContext(ctx, "manual run finished",
		"run_id", result.ID,
		"success", result.Success,
		"psid", code,
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleList handles GET /v1/runs?limit=.
func (h *RunHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidValue,
				"limit must be an integer between 1 and "+strconv.Itoa(maxHistoryLimit), nil))
			return
		}
		limit = n
	}

	entries, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: entries})
}
