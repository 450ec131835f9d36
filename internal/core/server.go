// Package core provides the operator API chassis: a chi router with the
// cross-cutting middleware (panic recovery, request IDs, logging, bearer
// authentication) and the JSON response helpers the handlers share.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"planswitch/internal/config"
)

// RouteRegistrar mounts a handler group under /v1. Handler packages provide
// registrars so core never imports them.
type RouteRegistrar func(r chi.Router)

// Server holds the router and the dependencies of the middleware chain.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe
	// V1RouteRegistrars are mounted, in order, behind AdminAuth.
	V1RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer prepares a server for route mounting. The caller appends
// registrars and probes, then calls MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}
