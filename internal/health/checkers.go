// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ManuGH/dpmon/internal/settings"
)

// PingChecker wraps a dependency's ping. A failing ping reports failStatus,
// so optional dependencies can degrade instead of failing readiness.
type PingChecker struct {
	name       string
	ping       func(ctx context.Context) error
	failStatus Status
}

// NewPingChecker creates a checker that is unhealthy when ping fails.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, failStatus: StatusUnhealthy}
}

// NewOptionalPingChecker creates a checker that is only degraded when ping fails.
func NewOptionalPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, failStatus: StatusDegraded}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: c.failStatus, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SettingsChecker reports the active settings revision and degrades while a
// publisher has not accepted it yet.
type SettingsChecker struct {
	holder *settings.Holder
}

func NewSettingsChecker(h *settings.Holder) *SettingsChecker {
	return &SettingsChecker{holder: h}
}

func (c *SettingsChecker) Name() string { return "settings" }

func (c *SettingsChecker) Check(context.Context) CheckResult {
	snap := c.holder.Current()
	if snap == nil {
		return CheckResult{Status: StatusUnhealthy, Error: "no settings loaded"}
	}
	msg := fmt.Sprintf("revision %.12s epoch %d from %s", snap.Revision, snap.Epoch, snap.Source)
	if stale := c.holder.Stale(); len(stale) > 0 {
		return CheckResult{
			Status:  StatusDegraded,
			Message: msg,
			Error:   "publishers behind: " + strings.Join(stale, ", "),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: msg}
}

// SinkChecker turns a component's last error into a degraded status.
// The graphite client reports through it.
type SinkChecker struct {
	name      string
	lastError func() error
}

func NewSinkChecker(name string, lastError func() error) *SinkChecker {
	return &SinkChecker{name: name, lastError: lastError}
}

func (c *SinkChecker) Name() string { return c.name }

func (c *SinkChecker) Check(context.Context) CheckResult {
	if err := c.lastError(); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// FileChecker checks that a generated file exists, is not empty and is fresh.
type FileChecker struct {
	name   string
	path   string
	maxAge time.Duration
}

// NewFileChecker creates a file checker. maxAge zero disables the age check.
func NewFileChecker(name, path string, maxAge time.Duration) *FileChecker {
	return &FileChecker{name: name, path: path, maxAge: maxAge}
}

func (c *FileChecker) Name() string { return c.name }

func (c *FileChecker) Check(context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Status: StatusUnhealthy, Error: "file not found", Message: c.path}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	}
	if info.Size() == 0 {
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	if c.maxAge > 0 && time.Since(info.ModTime()) > c.maxAge {
		return CheckResult{Status: StatusDegraded, Message: "file is stale"}
	}
	return CheckResult{Status: StatusHealthy, Message: "file exists and readable"}
}
