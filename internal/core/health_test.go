package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planswitch/internal/config"
)

func newHealthServer(t *testing.T, probes ...HealthProbe) *Server {
	t.Helper()
	srv, err := NewServer(&config.Config{Environment: "local"}, testLogger())
	require.NoError(t, err)
	srv.HealthProbes = probes
	return srv
}

func runHealth(t *testing.T, srv *Server) (int, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func okProbe(name string) ProbeFunc {
	return ProbeFunc{Label: name, Fn: func(context.Context) error { return nil }}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	code, resp := runHealth(t, newHealthServer(t, okProbe("database"), okProbe("scheduler")))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, componentStatus{Status: "healthy"}, resp.Components["database"])
}

func TestHandleHealth_FailingProbe(t *testing.T) {
	failing := ProbeFunc{Label: "database", Fn: func(context.Context) error { return errors.New("connection refused") }}
	code, resp := runHealth(t, newHealthServer(t, failing, okProbe("scheduler")))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "connection refused", resp.Components["database"].Message)
	assert.Equal(t, "healthy", resp.Components["scheduler"].Status)
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	panicky := ProbeFunc{Label: "database", Fn: func(context.Context) error { panic("nil pool") }}
	code, resp := runHealth(t, newHealthServer(t, panicky))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, resp.Components["database"].Message, "probe panicked")
}

func TestHandleHealth_SlowProbeTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := ProbeFunc{Label: "database", Fn: func(context.Context) error {
		<-release
		return nil
	}}

	start := time.Now()
	code, resp := runHealth(t, newHealthServer(t, slow))
	assert.Less(t, time.Since(start), healthCheckTimeout+time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "health check timed out", resp.Components["database"].Message)
}
