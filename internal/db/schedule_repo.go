package db

import (
	"context"

	"planswitch/internal/types"
)

// ScheduleRepository reads plan_schedules and implements
// types.ScheduleProvider.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a repository over plan_schedules.
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// GetEnabledEntries returns the enabled entries ordered by time of day.
// Rows are returned as stored; the scheduler validates timezones per tick.
// Returns an empty slice (not nil) when nothing is enabled.
func (r *ScheduleRepository) GetEnabledEntries(ctx context.Context) ([]types.ScheduleEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, plan_name, plan_code, hour, minute, timezone, enabled
		 FROM plan_schedules
		 WHERE enabled
		 ORDER BY hour, minute, id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query schedule entries", err)
	}
	defer rows.Close()

	entries := make([]types.ScheduleEntry, 0)
	for rows.Next() {
		var e types.ScheduleEntry
		if err := rows.Scan(&e.ID, &e.PlanName, &e.PlanCode, &e.Hour, &e.Minute, &e.Timezone, &e.Enabled); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating schedule entries", err)
	}
	return entries, nil
}
