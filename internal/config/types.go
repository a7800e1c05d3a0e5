// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the dpmon daemon configuration. Values are resolved
// as ENV > config file > defaults; the settings document served to the
// dashboard is a separate file owned by package settings.
package config

import (
	"time"

	"github.com/ManuGH/dpmon/internal/graphite"
)

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version    string
	ConfigPath string

	DataDir    string
	LogLevel   string
	LogService string

	Settings  SettingsConfig
	API       APIConfig
	Metrics   MetricsConfig
	Graphite  GraphiteConfig
	Monitor   MonitorConfig
	Redis     RedisConfig
	History   HistoryConfig
	Telemetry TelemetryConfig
}

// SettingsConfig locates the settings document and its rendered config.js.
type SettingsConfig struct {
	Path string
	// RenderPath receives config.js on every swap; empty disables the file publisher.
	RenderPath string
	Watch      bool
	Debounce   time.Duration
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	ListenAddr string
	// ReloadRateLimit is the number of reload requests allowed per minute and client.
	ReloadRateLimit int
}

// MetricsConfig configures the Prometheus listener. An empty address serves
// /metrics on the API listener instead.
type MetricsConfig struct {
	ListenAddr string
}

// SchemaRule is the file form of a graphite.Rule.
type SchemaRule struct {
	Pattern   string `yaml:"pattern"`
	Aggregate string `yaml:"aggregate"`
}

// GraphiteConfig configures the carbon client.
type GraphiteConfig struct {
	Enabled           bool
	Host              string
	Port              int
	Root              string
	AggregationTime   time.Duration
	Timeout           time.Duration
	MaxPending        int
	ReconnectInterval time.Duration
	Schema            []SchemaRule
}

// ClientConfig converts to the graphite client's configuration.
func (g GraphiteConfig) ClientConfig() graphite.Config {
	return graphite.Config{
		Host:              g.Host,
		Port:              g.Port,
		Root:              g.Root,
		AggregationTime:   g.AggregationTime,
		Timeout:           g.Timeout,
		MaxPending:        g.MaxPending,
		ReconnectInterval: g.ReconnectInterval,
	}
}

// ClientSchema converts the configured rules. Rules from the file come first
// so they can override the defaults passed in.
func (g GraphiteConfig) ClientSchema(defaults graphite.Schema) graphite.Schema {
	out := make(graphite.Schema, 0, len(g.Schema)+len(defaults))
	for _, r := range g.Schema {
		out = append(out, graphite.Rule{Pattern: r.Pattern, Aggregate: graphite.Aggregate(r.Aggregate)})
	}
	return append(out, defaults...)
}

// MonitorConfig configures the collection loop.
type MonitorConfig struct {
	Enabled   bool
	Interval  time.Duration
	Devices   []string
	AccessLog string
	ProcRoot  string
	SysRoot   string
}

// RedisConfig configures the redis publisher.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
	// ConnectRetries bounds start-up connection attempts.
	ConnectRetries int
}

// HistoryConfig configures the sqlite revision log.
type HistoryConfig struct {
	Enabled bool
	// Path defaults to <dataDir>/history.db.
	Path string
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// FileConfig is the on-disk YAML form. Pointers distinguish "unset" from zero.
type FileConfig struct {
	DataDir    string `yaml:"dataDir,omitempty"`
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	Settings  *FileSettings  `yaml:"settings,omitempty"`
	API       *FileAPI       `yaml:"api,omitempty"`
	Metrics   *FileMetrics   `yaml:"metrics,omitempty"`
	Graphite  *FileGraphite  `yaml:"graphite,omitempty"`
	Monitor   *FileMonitor   `yaml:"monitor,omitempty"`
	Redis     *FileRedis     `yaml:"redis,omitempty"`
	History   *FileHistory   `yaml:"history,omitempty"`
	Telemetry *FileTelemetry `yaml:"telemetry,omitempty"`
}

type FileSettings struct {
	Path       string `yaml:"path,omitempty"`
	RenderPath string `yaml:"renderPath,omitempty"`
	Watch      *bool  `yaml:"watch,omitempty"`
	Debounce   string `yaml:"debounce,omitempty"`
}

type FileAPI struct {
	ListenAddr      string `yaml:"listenAddr,omitempty"`
	ReloadRateLimit *int   `yaml:"reloadRateLimit,omitempty"`
}

type FileMetrics struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

type FileGraphite struct {
	Enabled           *bool        `yaml:"enabled,omitempty"`
	Host              string       `yaml:"host,omitempty"`
	Port              *int         `yaml:"port,omitempty"`
	Root              string       `yaml:"root,omitempty"`
	AggregationTime   string       `yaml:"aggregationTime,omitempty"`
	Timeout           string       `yaml:"timeout,omitempty"`
	MaxPending        *int         `yaml:"maxPending,omitempty"`
	ReconnectInterval string       `yaml:"reconnectInterval,omitempty"`
	Schema            []SchemaRule `yaml:"schema,omitempty"`
}

type FileMonitor struct {
	Enabled   *bool    `yaml:"enabled,omitempty"`
	Interval  string   `yaml:"interval,omitempty"`
	Devices   []string `yaml:"devices,omitempty"`
	AccessLog string   `yaml:"accessLog,omitempty"`
	ProcRoot  string   `yaml:"procRoot,omitempty"`
	SysRoot   string   `yaml:"sysRoot,omitempty"`
}

type FileRedis struct {
	Enabled        *bool  `yaml:"enabled,omitempty"`
	Addr           string `yaml:"addr,omitempty"`
	Password       string `yaml:"password,omitempty"`
	DB             *int   `yaml:"db,omitempty"`
	Prefix         string `yaml:"prefix,omitempty"`
	ConnectRetries *int   `yaml:"connectRetries,omitempty"`
}

type FileHistory struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

type FileTelemetry struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
