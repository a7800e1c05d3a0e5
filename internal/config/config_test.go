// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/dpmon/internal/graphite"
	"github.com/ManuGH/dpmon/internal/validate"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dpmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "test-version").Load()
	require.NoError(t, err)

	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultListenAddr, cfg.API.ListenAddr)
	assert.Equal(t, 2003, cfg.Graphite.Port)
	assert.Equal(t, "dataportal", cfg.Graphite.Root)
	assert.Equal(t, 500*time.Millisecond, cfg.Settings.Debounce)
	assert.False(t, cfg.Graphite.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
dataDir: /srv/dpmon
logLevel: debug
settings:
  path: /etc/dpmon/settings.json
  renderPath: /srv/www/config.js
  watch: false
graphite:
  enabled: true
  host: carbon.local
  port: 2013
  aggregationTime: 2s
  schema:
    - pattern: "box.io.*"
      aggregate: max
monitor:
  enabled: true
  interval: 30s
  devices: [sda, "mmcblk0:sd"]
history:
  enabled: true
`)

	cfg, err := NewLoader(path, "1.0.0").Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/dpmon", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/etc/dpmon/settings.json", cfg.Settings.Path)
	assert.False(t, cfg.Settings.Watch)
	assert.Equal(t, "carbon.local", cfg.Graphite.Host)
	assert.Equal(t, 2013, cfg.Graphite.Port)
	assert.Equal(t, 2*time.Second, cfg.Graphite.AggregationTime)
	assert.Equal(t, 60*time.Second, cfg.Graphite.Timeout, "unset fields keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, []string{"sda", "mmcblk0:sd"}, cfg.Monitor.Devices)
	assert.Equal(t, "/srv/dpmon/history.db", cfg.History.Path)

	schema := cfg.Graphite.ClientSchema(graphite.Schema{{Pattern: "requests.count", Aggregate: graphite.AggregateSum}})
	require.Len(t, schema, 2)
	assert.Equal(t, "box.io.*", schema[0].Pattern)
	assert.Equal(t, graphite.AggregateMax, schema[0].Aggregate)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "graphite:\n  host: from-file\n  port: 2003\n")
	t.Setenv("DPMON_GRAPHITE_HOST", "from-env")
	t.Setenv("DPMON_GRAPHITE_PORT", "not-a-number")
	t.Setenv("DPMON_MONITOR_DEVICES", "sda, ,sdb")
	t.Setenv("DPMON_REDIS_PASSWORD", "hunter2")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Graphite.Host)
	assert.Equal(t, 2003, cfg.Graphite.Port, "invalid env values fall back")
	assert.Equal(t, []string{"sda", "sdb"}, cfg.Monitor.Devices)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Contains(t, l.ConsumedEnvKeys, "DPMON_GRAPHITE_HOST")
	assert.Contains(t, l.ConsumedEnvKeys, "DPMON_TELEMETRY_SAMPLING_RATE")
}

func TestLoadStrictYAML(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "graphite:\n  hostname: x\n", "strict parse error"},
		{"multiple documents", "logLevel: info\n---\nlogLevel: debug\n", "multiple YAML documents"},
		{"bad duration", "monitor:\n  interval: soon\n", "monitor.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeConfig(t, tt.body), "dev").Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejectsExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dpmon.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := NewLoader(path, "dev").Load()
	require.ErrorContains(t, err, "unsupported config format")
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, ""), "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.API.ListenAddr)
}

func TestValidateAccumulates(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Graphite.Enabled = true
	cfg.Graphite.Port = 0
	cfg.Graphite.Schema = []SchemaRule{{Pattern: "x", Aggregate: "median"}}
	cfg.Monitor.Enabled = true
	cfg.Monitor.Interval = 0
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "zipkin"
	cfg.Metrics.ListenAddr = cfg.API.ListenAddr

	err := Validate(cfg)
	require.Error(t, err)

	var verr validate.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Errors()))
	for _, e := range verr.Errors() {
		fields = append(fields, e.Field)
	}
	want := []string{
		"logLevel",
		"metrics.listenAddr",
		"graphite.port",
		"graphite.schema",
		"monitor.interval",
		"telemetry.exporter",
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestMonitorRequiresGraphite(t *testing.T) {
	cfg := Defaults()
	cfg.Monitor.Enabled = true
	require.ErrorContains(t, Validate(cfg), "requires graphite.enabled")
}

func TestManagerSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "dpmon.yaml")
	cfg := Defaults()
	cfg.Graphite.Enabled = true
	cfg.Graphite.Schema = []SchemaRule{{Pattern: "box.*", Aggregate: "max"}}
	cfg.Monitor.Devices = []string{"sda"}
	cfg.Redis.Password = "s3cret"

	require.NoError(t, NewManager(path).Save(cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	loaded.ConfigPath = ""
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestManagerSaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dpmon.yaml")
	cfg := Defaults()
	cfg.API.ListenAddr = ""

	require.Error(t, NewManager(path).Save(cfg))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
