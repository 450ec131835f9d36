// Package handlers contains the operator API handlers. Every route assumes
// core.AdminAuth is already applied.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"planswitch/internal/core"
	"planswitch/internal/plans"
	"planswitch/internal/types"
)

// PlanHandler exposes the plan catalog.
type PlanHandler struct{}

// NewPlanHandler creates a PlanHandler over the static catalog.
func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

// RegisterRoutes mounts the plan endpoints under /v1/plans.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Get("/resolve", h.HandleResolve)
}

// HandleList handles GET /v1/plans.
func (h *PlanHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: plans.List()})
}

// HandleResolve handles GET /v1/plans/resolve?name=. Unknown names are 404
// with the valid names in details.
func (h *PlanHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "name query parameter is required", nil))
		return
	}
	entry, err := plans.Lookup(name)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: entry})
}
