// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/dpmon/internal/graphite"
	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/ManuGH/dpmon/internal/telemetry"
)

const (
	DefaultDataDir       = "/var/lib/dpmon"
	DefaultListenAddr    = ":8080"
	DefaultLogLevel      = "info"
	DefaultRedisAddr     = "127.0.0.1:6379"
	DefaultRedisPrefix   = "dpmon:"
	DefaultMonitorPeriod = 10 * time.Second
)

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() AppConfig {
	g := graphite.DefaultConfig()
	return AppConfig{
		DataDir:  DefaultDataDir,
		LogLevel: DefaultLogLevel,
		Settings: SettingsConfig{
			Watch:    true,
			Debounce: settings.DefaultDebounce,
		},
		API: APIConfig{
			ListenAddr:      DefaultListenAddr,
			ReloadRateLimit: 10,
		},
		Graphite: GraphiteConfig{
			Host:              g.Host,
			Port:              g.Port,
			Root:              g.Root,
			AggregationTime:   g.AggregationTime,
			Timeout:           g.Timeout,
			MaxPending:        g.MaxPending,
			ReconnectInterval: g.ReconnectInterval,
		},
		Monitor: MonitorConfig{
			Interval: DefaultMonitorPeriod,
		},
		Redis: RedisConfig{
			Addr:           DefaultRedisAddr,
			Prefix:         DefaultRedisPrefix,
			ConnectRetries: 5,
		},
		Telemetry: TelemetryConfig{
			Exporter:     telemetry.ExporterGRPC,
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
