// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/dpmon/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Manager persists configuration files.
type Manager struct {
	configPath string
}

// NewManager creates a manager for configPath.
func NewManager(configPath string) *Manager {
	return &Manager{configPath: configPath}
}

// Save validates cfg and atomically replaces the config file with it.
func (m *Manager) Save(cfg AppConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	fc := ToFile(cfg)
	return fsutil.WriteAtomic(m.configPath, 0o600, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(fc); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		return enc.Close()
	})
}

func durString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// ToFile maps a resolved configuration back to its file form.
func ToFile(cfg AppConfig) FileConfig {
	boolp := func(b bool) *bool { return &b }
	intp := func(i int) *int { return &i }
	rate := cfg.Telemetry.SamplingRate

	return FileConfig{
		DataDir:    cfg.DataDir,
		LogLevel:   cfg.LogLevel,
		LogService: cfg.LogService,
		Settings: &FileSettings{
			Path:       cfg.Settings.Path,
			RenderPath: cfg.Settings.RenderPath,
			Watch:      boolp(cfg.Settings.Watch),
			Debounce:   durString(cfg.Settings.Debounce),
		},
		API: &FileAPI{
			ListenAddr:      cfg.API.ListenAddr,
			ReloadRateLimit: intp(cfg.API.ReloadRateLimit),
		},
		Metrics: &FileMetrics{ListenAddr: cfg.Metrics.ListenAddr},
		Graphite: &FileGraphite{
			Enabled:           boolp(cfg.Graphite.Enabled),
			Host:              cfg.Graphite.Host,
			Port:              intp(cfg.Graphite.Port),
			Root:              cfg.Graphite.Root,
			AggregationTime:   durString(cfg.Graphite.AggregationTime),
			Timeout:           durString(cfg.Graphite.Timeout),
			MaxPending:        intp(cfg.Graphite.MaxPending),
			ReconnectInterval: durString(cfg.Graphite.ReconnectInterval),
			Schema:            cfg.Graphite.Schema,
		},
		Monitor: &FileMonitor{
			Enabled:   boolp(cfg.Monitor.Enabled),
			Interval:  durString(cfg.Monitor.Interval),
			Devices:   cfg.Monitor.Devices,
			AccessLog: cfg.Monitor.AccessLog,
			ProcRoot:  cfg.Monitor.ProcRoot,
			SysRoot:   cfg.Monitor.SysRoot,
		},
		Redis: &FileRedis{
			Enabled:        boolp(cfg.Redis.Enabled),
			Addr:           cfg.Redis.Addr,
			Password:       cfg.Redis.Password,
			DB:             intp(cfg.Redis.DB),
			Prefix:         cfg.Redis.Prefix,
			ConnectRetries: intp(cfg.Redis.ConnectRetries),
		},
		History: &FileHistory{
			Enabled: boolp(cfg.History.Enabled),
			Path:    cfg.History.Path,
		},
		Telemetry: &FileTelemetry{
			Enabled:      boolp(cfg.Telemetry.Enabled),
			Exporter:     cfg.Telemetry.Exporter,
			Endpoint:     cfg.Telemetry.Endpoint,
			SamplingRate: &rate,
		},
	}
}
