// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/dpmon/internal/telemetry"
	"github.com/ManuGH/dpmon/internal/validate"
)

// Validate reports every problem in cfg at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("dataDir", cfg.DataDir)
	v.LogLevel("logLevel", cfg.LogLevel)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.NonNegative("api.reloadRateLimit", cfg.API.ReloadRateLimit)
	if cfg.Metrics.ListenAddr != "" {
		v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
		if cfg.Metrics.ListenAddr == cfg.API.ListenAddr {
			v.AddError("metrics.listenAddr", "must differ from api.listenAddr", cfg.Metrics.ListenAddr)
		}
	}
	if cfg.Settings.Watch && cfg.Settings.Path != "" {
		v.MinDuration("settings.debounce", cfg.Settings.Debounce, time.Millisecond)
	}

	if cfg.Graphite.Enabled {
		v.NotEmpty("graphite.host", cfg.Graphite.Host)
		v.Port("graphite.port", cfg.Graphite.Port)
		v.NotEmpty("graphite.root", cfg.Graphite.Root)
		v.MinDuration("graphite.aggregationTime", cfg.Graphite.AggregationTime, time.Second)
		v.MinDuration("graphite.timeout", cfg.Graphite.Timeout, time.Millisecond)
		v.Positive("graphite.maxPending", cfg.Graphite.MaxPending)
		if cfg.Graphite.ReconnectInterval < 0 {
			v.AddError("graphite.reconnectInterval", "must not be negative", cfg.Graphite.ReconnectInterval.String())
		}
		if err := cfg.Graphite.ClientSchema(nil).Validate(); err != nil {
			v.AddError("graphite.schema", err.Error(), len(cfg.Graphite.Schema))
		}
	}

	if cfg.Monitor.Enabled {
		if !cfg.Graphite.Enabled {
			v.AddError("monitor.enabled", "requires graphite.enabled", true)
		}
		v.MinDuration("monitor.interval", cfg.Monitor.Interval, time.Second)
	}

	if cfg.Redis.Enabled {
		v.NotEmpty("redis.addr", cfg.Redis.Addr)
		v.Range("redis.db", cfg.Redis.DB, 0, 15)
		v.Positive("redis.connectRetries", cfg.Redis.ConnectRetries)
	}

	if cfg.History.Enabled {
		v.NotEmpty("history.path", cfg.History.Path)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{telemetry.ExporterGRPC, telemetry.ExporterHTTP})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
