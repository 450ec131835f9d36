package db

import (
	"context"
	"time"

	"planswitch/internal/types"
)

// HistoryEntry is a stored run outcome with its trigger label.
type HistoryEntry struct {
	types.RunResult
	Label string `json:"context"`
}

// HistoryRepository is the run_history table. It implements types.LogSink;
// each Append is a single INSERT.
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository creates a repository over run_history.
func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts one run_history row. Plan fields are NULL for failed runs.
func (r *HistoryRepository) Append(ctx context.Context, result types.RunResult, contextLabel string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO run_history (id, success, message, plan_name, plan_code, context_label, ran_at, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		result.ID,
		result.Success,
		result.Message,
		nullable(result.PlanName),
		nullable(result.PlanCode),
		contextLabel,
		result.Timestamp.UTC(),
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append run history", err)
	}
	return nil
}

// ListRecent returns up to limit entries, newest first.
func (r *HistoryRepository) ListRecent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, success, message, plan_name, plan_code, context_label, ran_at, duration_ms
		 FROM run_history
		 ORDER BY ran_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query run history", err)
	}
	defer rows.Close()

	out := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			e                  HistoryEntry
			planName, planCode *string
			durationMS         int64
		)
		if err := rows.Scan(&e.ID, &e.Success, &e.Message, &planName, &planCode, &e.Label, &e.Timestamp, &durationMS); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan run history", err)
		}
		e.PlanName = deref(planName)
		e.PlanCode = deref(planCode)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating run history", err)
	}
	return out, nil
}
