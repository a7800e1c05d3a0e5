// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/dpmon/internal/config"
	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "ok", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "slow", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v1.0.0")
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Nil(t, resp.Checks)

	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})
	resp = m.Ready(context.Background())
	assert.True(t, resp.Ready, "degraded components do not block readiness")
	assert.Equal(t, StatusDegraded, resp.Status)

	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})
	resp = m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeReady(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(NewPingChecker("redis", func(context.Context) error { return errors.New("connection refused") }))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, "connection refused", body.Checks["redis"].Error)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "liveness ignores components")
}

func TestPingCheckerTimeout(t *testing.T) {
	m := NewManager("v1")
	m.timeout = 10 * time.Millisecond
	m.RegisterChecker(NewOptionalPingChecker("history", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Checks["history"].Status)
}

func TestSettingsChecker(t *testing.T) {
	h, err := settings.NewHolder(settings.Default(), "")
	require.NoError(t, err)

	res := NewSettingsChecker(h).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Contains(t, res.Message, "epoch 1 from default")

	pub := &stubPublisher{err: errors.New("disk full")}
	h.AddPublisher(pub)
	require.Error(t, h.Publish(context.Background()))
	res = NewSettingsChecker(h).Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "publishers behind: stub", res.Error)

	pub.err = nil
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, StatusHealthy, NewSettingsChecker(h).Check(context.Background()).Status)
}

type stubPublisher struct{ err error }

func (p *stubPublisher) Name() string { return "stub" }
func (p *stubPublisher) Publish(context.Context, *settings.Snapshot) error {
	return p.err
}

func TestSinkChecker(t *testing.T) {
	var last error
	c := NewSinkChecker("graphite", func() error { return last })
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	last = errors.New("failed to connect to graphite")
	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "failed to connect to graphite", res.Error)
}

func TestFileChecker(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.js")
	full := filepath.Join(dir, "config.js")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	require.NoError(t, os.WriteFile(full, []byte("define([])"), 0o600))

	tests := []struct {
		name string
		path string
		want Status
	}{
		{"unset", "", StatusHealthy},
		{"missing", filepath.Join(dir, "nope.js"), StatusUnhealthy},
		{"directory", dir, StatusUnhealthy},
		{"empty", empty, StatusDegraded},
		{"present", full, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewFileChecker("config_js", tt.path, 0).Check(context.Background())
			assert.Equal(t, tt.want, res.Status)
		})
	}

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(full, old, old))
	assert.Equal(t, StatusDegraded, NewFileChecker("config_js", full, time.Hour).Check(context.Background()).Status)
}

func TestPerformStartupChecks(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(settingsPath, []byte("{}"), 0o600))

	cfg := config.Defaults()
	cfg.Settings.Path = settingsPath
	cfg.Settings.RenderPath = filepath.Join(dir, "www", "config.js")
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(dir, "data", "history.db")

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	assert.DirExists(t, filepath.Join(dir, "www"))
	assert.DirExists(t, filepath.Join(dir, "data"))

	cfg.Settings.Path = filepath.Join(dir, "missing.json")
	require.ErrorContains(t, PerformStartupChecks(context.Background(), cfg), "settings file check failed")
}
