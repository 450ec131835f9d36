package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planswitch/internal/core"
	"planswitch/internal/db"
	"planswitch/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Fakes ---

type fakeConfigs struct {
	cfg *types.RunConfig
	err error
}

func (f *fakeConfigs) GetRunConfig(context.Context) (*types.RunConfig, error) { return f.cfg, f.err }

type fakeRunner struct {
	mu     sync.Mutex
	got    []types.RunConfig
	ctxErr error
	result types.RunResult
}

func (f *fakeRunner) Run(ctx context.Context, cfg types.RunConfig) types.RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, cfg)
	f.ctxErr = ctx.Err()
	r := f.result
	r.PlanCode = cfg.TargetPlanCode
	return r
}

type recordedAppend struct {
	result types.RunResult
	label  string
}

type fakeSink struct {
	appends []recordedAppend
	err     error
}

func (f *fakeSink) Append(_ context.Context, r types.RunResult, label string) error {
	f.appends = append(f.appends, recordedAppend{r, label})
	return f.err
}

type fakeHistory struct {
	entries []db.HistoryEntry
	err     error
	limit   int
}

func (f *fakeHistory) ListRecent(_ context.Context, limit int) ([]db.HistoryEntry, error) {
	f.limit = limit
	return f.entries, f.err
}

type fakeSchedules struct {
	entries []types.ScheduleEntry
	err     error
}

func (f *fakeSchedules) GetEnabledEntries(context.Context) ([]types.ScheduleEntry, error) {
	return f.entries, f.err
}

// --- Helpers ---

func storedConfig() *types.RunConfig {
	return &types.RunConfig{
		BaseURL:        "https://portal.example.com",
		Username:       "subscriber",
		Password:       "secret",
		TargetPlanCode: "2661",
	}
}

type runFixture struct {
	configs *fakeConfigs
	runner  *fakeRunner
	sink    *fakeSink
	history *fakeHistory
	router  chi.Router
}

func newRunFixture() *runFixture {
	f := &runFixture{
		configs: &fakeConfigs{cfg: storedConfig()},
		runner:  &fakeRunner{result: types.RunResult{ID: "run-1", Success: true, Message: "Plan changed successfully"}},
		sink:    &fakeSink{},
		history: &fakeHistory{},
	}
	h := NewRunHandler(f.configs, f.runner, f.sink, f.history, core.NewValidator(testLogger()), testLogger())
	r := chi.NewRouter()
	r.Route("/v1/runs", h.RegisterRoutes)
	f.router = r
	return f
}

func (f *runFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

// --- Plans ---

func TestPlanHandler(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/v1/plans", NewPlanHandler().RegisterRoutes)

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/plans", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data []struct {
				Name string `json:"name"`
				Code int    `json:"code"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Data)
		assert.Equal(t, "Home Basic", resp.Data[0].Name)
	})

	t.Run("resolve", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/plans/resolve?name=home%20%20FAST", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"name":"Home Fast","code":2669}}`, rec.Body.String())
	})

	t.Run("resolve unknown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/plans/resolve?name=warp", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, string(types.ErrCodeNotFoundPlan), errorCode(t, rec))
	})

	t.Run("resolve missing name", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/plans/resolve", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// --- Runs ---

func TestRunHandler_CreateByName(t *testing.T) {
	f := newRunFixture()
	rec := f.do(http.MethodPost, "/v1/runs", `{"plan":"Home Fast"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.runner.got, 1)
	assert.Equal(t, "2669", f.runner.got[0].TargetPlanCode)
	assert.Equal(t, "https://portal.example.com", f.runner.got[0].BaseURL)
	assert.Equal(t, "2661", f.configs.cfg.TargetPlanCode, "stored config is not mutated")

	require.Len(t, f.sink.appends, 1)
	assert.Equal(t, types.LabelManual, f.sink.appends[0].label)
	assert.Equal(t, "run-1", f.sink.appends[0].result.ID)

	var resp struct {
		Data types.RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Success)
	assert.Equal(t, "2669", resp.Data.PlanCode)
}

func TestRunHandler_CreateByCode(t *testing.T) {
	f := newRunFixture()
	rec := f.do(http.MethodPost, "/v1/runs", `{"plan":"ignored","plan_code":"2673"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2673", f.runner.got[0].TargetPlanCode)
}

func TestRunHandler_FailedRunIsStill200(t *testing.T) {
	f := newRunFixture()
	f.runner.result = types.RunResult{ID: "run-2", Message: "login form not found"}
	f.sink.err = errors.New("history table unavailable")

	rec := f.do(http.MethodPost, "/v1/runs", `{"plan_code":"2669"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "login form not found")
	assert.Len(t, f.sink.appends, 1)
}

func TestRunHandler_CreateErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		setup  func(*runFixture)
		status int
		code   types.ErrorCode
	}{
		{"no selector", `{}`, nil, http.StatusBadRequest, types.ErrCodeValidationMissingField},
		{"bad code", `{"plan_code":"fast"}`, nil, http.StatusBadRequest, types.ErrCodeValidationPlanCode},
		{"unknown field", `{"speed":"fast"}`, nil, http.StatusBadRequest, types.ErrCodeValidationInvalidJSON},
		{"unknown plan", `{"plan":"warp"}`, nil, http.StatusNotFound, types.ErrCodeNotFoundPlan},
		{"no stored config", `{"plan":"Home Fast"}`, func(f *runFixture) { f.configs.cfg = nil }, http.StatusNotFound, types.ErrCodeNotFoundRunConfig},
		{"config load failure", `{"plan":"Home Fast"}`, func(f *runFixture) {
			f.configs.err = types.NewAppError(types.ErrCodeInternalDB, "failed to load portal settings", nil)
		}, http.StatusInternalServerError, types.ErrCodeInternalDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			rec := f.do(http.MethodPost, "/v1/runs", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.code), errorCode(t, rec))
			assert.Empty(t, f.runner.got, "engine must not run")
			assert.Empty(t, f.sink.appends)
		})
	}
}

func TestRunHandler_RunDetachedFromRequest(t *testing.T) {
	f := newRunFixture()
	h := NewRunHandler(f.configs, f.runner, f.sink, f.history, core.NewValidator(testLogger()), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{"plan_code":"2669"}`)).WithContext(ctx)
	h.HandleCreate(httptest.NewRecorder(), req)

	require.Len(t, f.runner.got, 1)
	assert.NoError(t, f.runner.ctxErr)
}

func TestRunHandler_List(t *testing.T) {
	f := newRunFixture()
	f.history.entries = []db.HistoryEntry{{
		RunResult: types.RunResult{ID: "run-1", Success: true, Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		Label:     types.LabelScheduled,
	}}

	rec := f.do(http.MethodGet, "/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, f.history.limit)
	assert.Contains(t, rec.Body.String(), `"context":"scheduled"`)

	rec = f.do(http.MethodGet, "/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, f.history.limit)

	for _, bad := range []string{"0", "101", "ten"} {
		rec = f.do(http.MethodGet, "/v1/runs?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	f.history.err = types.NewAppError(types.ErrCodeInternalDB, "failed to query run history", nil)
	rec = f.do(http.MethodGet, "/v1/runs", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- Schedules ---

func TestScheduleHandler_List(t *testing.T) {
	schedules := &fakeSchedules{entries: []types.ScheduleEntry{
		{ID: "s1", PlanCode: "2669", Hour: 7, Minute: 0, Timezone: "America/New_York", Enabled: true},
		{ID: "s2", PlanCode: "2661", Hour: 22, Minute: 0, Timezone: "Mars/Olympus", Enabled: true},
	}}
	r := chi.NewRouter()
	r.Route("/v1/schedules", NewScheduleHandler(schedules).RegisterRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/schedules", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []ScheduleView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[0].Valid)
	assert.False(t, resp.Data[1].Valid)
	assert.Contains(t, resp.Data[1].Error, "Mars/Olympus")

	schedules.err = errors.New("boom")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/schedules", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
