package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planswitch/internal/types"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Append(ctx context.Context, result types.RunResult, contextLabel string) error {
	args := m.Called(ctx, result, contextLabel)
	return args.Error(0)
}

func TestFanoutSink_CallsEverySinkDespiteFailures(t *testing.T) {
	result := types.RunResult{ID: "r1", Success: true, Message: SuccessMessage}
	failing := new(mockSink)
	healthy := new(mockSink)
	failing.On("Append", mock.Anything, result, types.LabelManual).Return(errors.New("db down"))
	healthy.On("Append", mock.Anything, result, types.LabelManual).Return(nil)

	sink := NewFanoutSink(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), failing, nil, healthy)
	err := sink.Append(context.Background(), result, types.LabelManual)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	failing.AssertExpectations(t)
	healthy.AssertExpectations(t)
}

func TestFanoutSink_Empty(t *testing.T) {
	assert.NoError(t, NewFanoutSink(nil).Append(context.Background(), types.RunResult{}, types.LabelCLI))
}

func TestLoggingSink_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLoggingSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Append(context.Background(), types.RunResult{
		ID:        "r2",
		Success:   false,
		Message:   "confirmation unclear",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, types.LabelScheduled)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "r2", rec["run_id"])
	assert.Equal(t, "scheduled", rec["context"])
	assert.Equal(t, false, rec["success"])
}
