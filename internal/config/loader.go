// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader resolves configuration with ENV > file > defaults precedence.
type Loader struct {
	configPath string
	version    string
	// ConsumedEnvKeys records every variable the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(name, def string) string {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(name string, def bool) bool {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(name string, def int) int {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envFloat(name string, def float64) float64 {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envDuration(name string, def time.Duration) time.Duration {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envList(name string, def []string) []string {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, def)
}

// Load builds the configuration and validates it.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version
	cfg.ConfigPath = l.configPath

	if l.configPath != "" {
		fc, err := l.loadFile(l.configPath)
		if err != nil {
			return AppConfig{}, err
		}
		if err := mergeFile(&cfg, fc); err != nil {
			return AppConfig{}, fmt.Errorf("config %s: %w", l.configPath, err)
		}
	}

	l.mergeEnv(&cfg)
	resolvePaths(&cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (use .yaml or .yml)", ext)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return parseFile(data)
}

// parseFile decodes a single YAML document and rejects unknown keys.
func parseFile(data []byte) (*FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return &fc, nil
		}
		return nil, fmt.Errorf("strict parse error: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("strict parse error: multiple YAML documents are not allowed")
	}
	return &fc, nil
}

func parseDur(field, s string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", field, s)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeFile(cfg *AppConfig, fc *FileConfig) error {
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogService, fc.LogService)

	var errs []error
	if s := fc.Settings; s != nil {
		setString(&cfg.Settings.Path, s.Path)
		setString(&cfg.Settings.RenderPath, s.RenderPath)
		setBool(&cfg.Settings.Watch, s.Watch)
		errs = append(errs, parseDur("settings.debounce", s.Debounce, &cfg.Settings.Debounce))
	}
	if a := fc.API; a != nil {
		setString(&cfg.API.ListenAddr, a.ListenAddr)
		setInt(&cfg.API.ReloadRateLimit, a.ReloadRateLimit)
	}
	if m := fc.Metrics; m != nil {
		setString(&cfg.Metrics.ListenAddr, m.ListenAddr)
	}
	if g := fc.Graphite; g != nil {
		setBool(&cfg.Graphite.Enabled, g.Enabled)
		setString(&cfg.Graphite.Host, g.Host)
		setInt(&cfg.Graphite.Port, g.Port)
		setString(&cfg.Graphite.Root, g.Root)
		setInt(&cfg.Graphite.MaxPending, g.MaxPending)
		errs = append(errs,
			parseDur("graphite.aggregationTime", g.AggregationTime, &cfg.Graphite.AggregationTime),
			parseDur("graphite.timeout", g.Timeout, &cfg.Graphite.Timeout),
			parseDur("graphite.reconnectInterval", g.ReconnectInterval, &cfg.Graphite.ReconnectInterval),
		)
		if g.Schema != nil {
			cfg.Graphite.Schema = append([]SchemaRule(nil), g.Schema...)
		}
	}
	if m := fc.Monitor; m != nil {
		setBool(&cfg.Monitor.Enabled, m.Enabled)
		errs = append(errs, parseDur("monitor.interval", m.Interval, &cfg.Monitor.Interval))
		if m.Devices != nil {
			cfg.Monitor.Devices = append([]string(nil), m.Devices...)
		}
		setString(&cfg.Monitor.AccessLog, m.AccessLog)
		setString(&cfg.Monitor.ProcRoot, m.ProcRoot)
		setString(&cfg.Monitor.SysRoot, m.SysRoot)
	}
	if r := fc.Redis; r != nil {
		setBool(&cfg.Redis.Enabled, r.Enabled)
		setString(&cfg.Redis.Addr, r.Addr)
		setString(&cfg.Redis.Password, r.Password)
		setInt(&cfg.Redis.DB, r.DB)
		setString(&cfg.Redis.Prefix, r.Prefix)
		setInt(&cfg.Redis.ConnectRetries, r.ConnectRetries)
	}
	if h := fc.History; h != nil {
		setBool(&cfg.History.Enabled, h.Enabled)
		setString(&cfg.History.Path, h.Path)
	}
	if t := fc.Telemetry; t != nil {
		setBool(&cfg.Telemetry.Enabled, t.Enabled)
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		if t.SamplingRate != nil {
			cfg.Telemetry.SamplingRate = *t.SamplingRate
		}
	}
	return errors.Join(errs...)
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)

	cfg.Settings.Path = l.envString("SETTINGS_PATH", cfg.Settings.Path)
	cfg.Settings.RenderPath = l.envString("SETTINGS_RENDER_PATH", cfg.Settings.RenderPath)
	cfg.Settings.Watch = l.envBool("SETTINGS_WATCH", cfg.Settings.Watch)
	cfg.Settings.Debounce = l.envDuration("SETTINGS_DEBOUNCE", cfg.Settings.Debounce)

	cfg.API.ListenAddr = l.envString("API_LISTEN", cfg.API.ListenAddr)
	cfg.API.ReloadRateLimit = l.envInt("API_RELOAD_RATE_LIMIT", cfg.API.ReloadRateLimit)
	cfg.Metrics.ListenAddr = l.envString("METRICS_LISTEN", cfg.Metrics.ListenAddr)

	cfg.Graphite.Enabled = l.envBool("GRAPHITE_ENABLED", cfg.Graphite.Enabled)
	cfg.Graphite.Host = l.envString("GRAPHITE_HOST", cfg.Graphite.Host)
	cfg.Graphite.Port = l.envInt("GRAPHITE_PORT", cfg.Graphite.Port)
	cfg.Graphite.Root = l.envString("GRAPHITE_ROOT", cfg.Graphite.Root)
	cfg.Graphite.AggregationTime = l.envDuration("GRAPHITE_AGGREGATION_TIME", cfg.Graphite.AggregationTime)
	cfg.Graphite.Timeout = l.envDuration("GRAPHITE_TIMEOUT", cfg.Graphite.Timeout)
	cfg.Graphite.MaxPending = l.envInt("GRAPHITE_MAX_PENDING", cfg.Graphite.MaxPending)
	cfg.Graphite.ReconnectInterval = l.envDuration("GRAPHITE_RECONNECT_INTERVAL", cfg.Graphite.ReconnectInterval)

	cfg.Monitor.Enabled = l.envBool("MONITOR_ENABLED", cfg.Monitor.Enabled)
	cfg.Monitor.Interval = l.envDuration("MONITOR_INTERVAL", cfg.Monitor.Interval)
	cfg.Monitor.Devices = l.envList("MONITOR_DEVICES", cfg.Monitor.Devices)
	cfg.Monitor.AccessLog = l.envString("MONITOR_ACCESS_LOG", cfg.Monitor.AccessLog)
	cfg.Monitor.ProcRoot = l.envString("MONITOR_PROC_ROOT", cfg.Monitor.ProcRoot)
	cfg.Monitor.SysRoot = l.envString("MONITOR_SYS_ROOT", cfg.Monitor.SysRoot)

	cfg.Redis.Enabled = l.envBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = l.envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Prefix = l.envString("REDIS_PREFIX", cfg.Redis.Prefix)
	cfg.Redis.ConnectRetries = l.envInt("REDIS_CONNECT_RETRIES", cfg.Redis.ConnectRetries)

	cfg.History.Enabled = l.envBool("HISTORY_ENABLED", cfg.History.Enabled)
	cfg.History.Path = l.envString("HISTORY_PATH", cfg.History.Path)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

func resolvePaths(cfg *AppConfig) {
	if cfg.History.Enabled && cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.DataDir, "history.db")
	}
}
