// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the settings document, its rendered config.js and the
// operational endpoints of the daemon.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManuGH/dpmon/internal/api/middleware"
	"github.com/ManuGH/dpmon/internal/health"
	"github.com/ManuGH/dpmon/internal/history"
	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds documents posted for validation.
const maxBodyBytes = 1 << 20

// HistoryLister is the read side of the revision store.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Revision, error)
}

// Config selects optional routes and middleware.
type Config struct {
	// ReloadRateLimit is reload requests per minute and client; zero disables the limit.
	ReloadRateLimit int
	// ServeMetrics exposes /metrics on this router.
	ServeMetrics   bool
	TracingService string
}

// Deps are the components the handlers read from.
type Deps struct {
	Holder  *settings.Holder
	Health  *health.Manager
	History HistoryLister // nil when the revision log is disabled
	Version string
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	deps   Deps
	router chi.Router
}

// New builds the router.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Holder == nil {
		return nil, errors.New("api: settings holder is required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(deps.Version)
	}
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	if s.cfg.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/config.js", s.handleConfigJS)
	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.Post("/validate", s.handleValidate)
		r.With(middleware.ReloadRateLimit(s.cfg.ReloadRateLimit)).Post("/reload", s.handleReload)
		r.Get("/history", s.handleHistory)
	})
	return r
}
