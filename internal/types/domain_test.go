package types

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRunConfig() RunConfig {
	return RunConfig{
		BaseURL:        "https://portal.example.net",
		Username:       "jo",
		Password:       SecretString("pw"),
		TargetPlanCode: "2661",
	}
}

func TestRunConfig_Validate(t *testing.T) {
	require.NoError(t, validRunConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*RunConfig)
		code   ErrorCode
	}{
		{"relative url", func(c *RunConfig) { c.BaseURL = "/portal" }, ErrCodeValidationInvalidURL},
		{"ftp url", func(c *RunConfig) { c.BaseURL = "ftp://portal.example.net" }, ErrCodeValidationInvalidURL},
		{"missing username", func(c *RunConfig) { c.Username = "" }, ErrCodeValidationMissingField},
		{"missing password", func(c *RunConfig) { c.Password = "" }, ErrCodeValidationMissingField},
		{"missing plan code", func(c *RunConfig) { c.TargetPlanCode = "" }, ErrCodeValidationMissingField},
		{"non-numeric plan code", func(c *RunConfig) { c.TargetPlanCode = "Home Basic" }, ErrCodeValidationPlanCode},
		{"zero plan code", func(c *RunConfig) { c.TargetPlanCode = "0" }, ErrCodeValidationPlanCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validRunConfig()
			tt.mutate(&cfg)
			assert.True(t, HasCode(cfg.Validate(), tt.code))
		})
	}
}

func TestRunConfig_WithPlanCodeCopies(t *testing.T) {
	base := validRunConfig()
	derived := base.WithPlanCode("2673")

	assert.Equal(t, "2661", base.TargetPlanCode)
	assert.Equal(t, "2673", derived.TargetPlanCode)
	assert.Equal(t, base.BaseURL, derived.BaseURL)
}

func TestScheduleEntry_Validate(t *testing.T) {
	ok := ScheduleEntry{Hour: 7, Minute: 30, Timezone: "Europe/London", PlanCode: "2669"}
	require.NoError(t, ok.Validate())

	tests := []struct {
		name  string
		entry ScheduleEntry
		code  ErrorCode
	}{
		{"hour too large", ScheduleEntry{Hour: 24, Timezone: "UTC", PlanCode: "1"}, ErrCodeValidationTimeOfDay},
		{"negative minute", ScheduleEntry{Minute: -1, Timezone: "UTC", PlanCode: "1"}, ErrCodeValidationTimeOfDay},
		{"empty zone", ScheduleEntry{PlanCode: "1"}, ErrCodeValidationTimezone},
		{"unknown zone", ScheduleEntry{Timezone: "Mars/Olympus", PlanCode: "1"}, ErrCodeValidationTimezone},
		{"bad plan code", ScheduleEntry{Timezone: "UTC", PlanCode: "x"}, ErrCodeValidationPlanCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, HasCode(tt.entry.Validate(), tt.code))
		})
	}
}

func TestScheduleEntry_MatchesInOwnZone(t *testing.T) {
	entry := ScheduleEntry{Hour: 9, Minute: 0, Timezone: "Australia/Sydney"}
	loc, err := entry.Location()
	require.NoError(t, err)

	// 23:00 UTC on 9 March is 10:00 AEDT; 22:00 UTC is 09:00.
	assert.True(t, entry.Matches(time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC), loc))
	assert.False(t, entry.Matches(time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC), loc))
	assert.False(t, entry.Matches(time.Date(2026, 3, 9, 22, 1, 0, 0, time.UTC), loc))
}

func TestSecretString_Redacts(t *testing.T) {
	s := SecretString("hunter2")

	assert.Equal(t, "hunter2", s.Unmask())
	assert.NotContains(t, fmt.Sprintf("%v %s", s, s), "hunter2")

	out, err := json.Marshal(struct {
		P SecretString `json:"p"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"***REDACTED***"}`, string(out))

	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Info("login", "password", s)
	assert.NotContains(t, buf.String(), "hunter2")

	assert.True(t, SecretString("").IsZero())
	assert.False(t, s.IsZero())
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetRunID(ctx))

	ctx = WithRunID(WithRequestID(ctx, "req-1"), "run-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "run-1", GetRunID(ctx))
}
