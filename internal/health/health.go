// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health serves liveness and readiness endpoints with per-component status.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/dpmon/internal/log"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultCheckTimeout bounds a single checker.
const DefaultCheckTimeout = 2 * time.Second

// CheckResult is one component's answer.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    int64                  `json:"uptime_seconds"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness body.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker reports one component. Check must honour ctx.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers for both endpoints.
type Manager struct {
	version string
	started time.Time
	timeout time.Duration

	mu       sync.RWMutex
	checkers []Checker
	last     map[string]Status
}

func NewManager(version string) *Manager {
	return &Manager{
		version: version,
		started: time.Now(),
		timeout: DefaultCheckTimeout,
		last:    make(map[string]Status),
	}
}

// RegisterChecker adds c. Names must be unique; a later checker with the
// same name shadows the earlier one in responses.
func (m *Manager) RegisterChecker(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// runChecks executes every checker concurrently, each under its own timeout,
// and folds the results into the worst status.
func (m *Manager) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	res := make([]CheckResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			res[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]CheckResult, len(checkers))
	overall := StatusHealthy
	for i, c := range checkers {
		results[c.Name()] = res[i]
		switch res[i].Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	m.recordTransitions(ctx, results)
	return results, overall
}

// recordTransitions logs a component only when its status changes.
func (m *Manager) recordTransitions(ctx context.Context, results map[string]CheckResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, r := range results {
		prev, seen := m.last[name]
		m.last[name] = r.Status
		if !seen && r.Status == StatusHealthy || prev == r.Status {
			continue
		}
		logger := log.WithComponentFromContext(ctx, "health")
		ev := logger.Warn()
		if r.Status == StatusHealthy {
			ev = logger.Info()
		}
		ev.Str("event", "health.transition").
			Str("check", name).
			Str("from", string(prev)).
			Str("to", string(r.Status)).
			Str("error", r.Error).
			Msg("component health changed")
	}
}

// Health is the liveness check. Checks only run when verbose is set.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    int64(time.Since(m.started).Seconds()),
		Timestamp: time.Now(),
	}
	if verbose {
		checks, status := m.runChecks(ctx)
		if len(checks) > 0 {
			resp.Checks = checks
			resp.Status = status
		}
	}
	return resp
}

// Ready is the readiness check. Any unhealthy component makes the daemon not ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	checks, status := m.runChecks(ctx)
	resp := ReadinessResponse{
		Ready:     status != StatusUnhealthy,
		Status:    status,
		Timestamp: time.Now(),
	}
	if len(checks) > 0 {
		resp.Checks = checks
	}
	return resp
}

// ServeHealth answers /healthz; ?verbose=true includes component checks.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady answers /readyz with 503 while not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}
