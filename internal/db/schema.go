package db

import (
	"context"

	"planswitch/internal/types"
)

// Schema creates the tables the repositories read and write. Every statement
// is idempotent.
const Schema = `
-- portal_settings holds exactly one row (id = 1).
CREATE TABLE IF NOT EXISTS portal_settings (
    id                 SMALLINT PRIMARY KEY CHECK (id = 1),
    base_url           TEXT NOT NULL,
    username           TEXT NOT NULL,
    password_sealed    TEXT NOT NULL,
    user_id            TEXT NOT NULL,
    service_id         TEXT NOT NULL,
    access_circuit_id  TEXT NOT NULL,
    location_id        TEXT,
    discount_code      TEXT,
    unpause            TEXT,
    coat               TEXT,
    churn              TEXT,
    scheduled_date     TEXT,
    payment_option     TEXT,
    request_timeout_ms BIGINT NOT NULL DEFAULT 0,
    target_plan_code   TEXT NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS plan_schedules (
    id         TEXT PRIMARY KEY,
    plan_name  TEXT NOT NULL,
    plan_code  TEXT NOT NULL,
    hour       INTEGER NOT NULL CHECK (hour BETWEEN 0 AND 23),
    minute     INTEGER NOT NULL CHECK (minute BETWEEN 0 AND 59),
    timezone   TEXT NOT NULL,
    enabled    BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS run_history (
    id            TEXT PRIMARY KEY,
    success       BOOLEAN NOT NULL,
    message       TEXT NOT NULL,
    plan_name     TEXT,
    plan_code     TEXT,
    context_label TEXT NOT NULL,
    ran_at        TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS run_history_ran_at_idx ON run_history (ran_at DESC);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply schema", err)
	}
	return nil
}
