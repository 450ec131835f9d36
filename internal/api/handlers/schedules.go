package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"planswitch/internal/core"
	"planswitch/internal/types"
)

// ScheduleView is a schedule entry annotated with whether the scheduler can
// evaluate it.
type ScheduleView struct {
	types.ScheduleEntry
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ScheduleHandler is a read-only view of the enabled schedule entries.
type ScheduleHandler struct {
	schedules types.ScheduleProvider
}

// NewScheduleHandler creates a ScheduleHandler.
func NewScheduleHandler(schedules types.ScheduleProvider) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// RegisterRoutes mounts GET /v1/schedules.
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
}

// HandleList handles GET /v1/schedules.
func (h *ScheduleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.schedules.GetEnabledEntries(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	out := make([]ScheduleView, 0, len(entries))
	for _, e := range entries {
		v := ScheduleView{ScheduleEntry: e, Valid: true}
		if err := e.Validate(); err != nil {
			v.Valid = false
			v.Error = types.Message(err)
		}
		out = append(out, v)
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: out})
}
