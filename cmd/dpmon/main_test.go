// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ManuGH/dpmon/internal/history"
	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/ManuGH/dpmon/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	code, out, _ := run(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, version.String()+"\n", out)
}

func TestValidateCommand(t *testing.T) {
	good := writeFile(t, "good.json", `{"playlist_timespan": "2m"}`)
	bad := writeFile(t, "bad.yaml", "timezoneOffset: 9999\nplaylist_timespan: 0m\n")

	code, out, _ := run(t, "validate", good)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "good.json: valid")

	code, _, errOut := run(t, "validate", good, bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "bad.yaml: 2 problem(s)")
	assert.Contains(t, errOut, "  timezoneOffset:")
	assert.Contains(t, errOut, "  playlist_timespan:")

	code, _, _ = run(t, "validate")
	assert.Equal(t, 2, code, "missing arguments")
}

func TestUsageErrorsExitTwo(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"validate", "--bogus", "x.json"}},
		{"unknown persistent flag value", []string{"version", "--config"}},
		{"extra argument", []string{"version", "extra"}},
		{"render needs one file", []string{"render", "a.yaml", "b.yaml"}},
		{"unknown command", []string{"bogus"}},
		{"unknown subcommand", []string{"config", "bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := run(t, tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, errOut, "Error:")
		})
	}

	code, out, _ := run(t)
	assert.Equal(t, 0, code, "bare invocation prints help")
	assert.Contains(t, out, "Usage:")
}

func TestRenderCommand(t *testing.T) {
	src := writeFile(t, "settings.yaml", "default_route: /dashboard/file/ops.json\n")

	code, out, _ := run(t, "render", src)
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "define(['settings'],"))
	assert.Contains(t, out, `"/dashboard/file/ops.json"`)

	dst := filepath.Join(t.TempDir(), "www", "config.js")
	code, _, _ = run(t, "render", src, "-o", dst)
	require.Equal(t, 0, code)
	written, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, out, string(written))

	code, _, _ = run(t, "render", writeFile(t, "config.js", "define()"))
	assert.Equal(t, 1, code, "config.js is render-only")
}

func TestDefaultCommand(t *testing.T) {
	code, out, _ := run(t, "default")
	require.Equal(t, 0, code)
	doc, err := settings.DecodeJSON(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, settings.Default(), doc)

	code, out, _ = run(t, "default", "--format", "yaml")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "playlist_timespan: 1m")

	code, _, _ = run(t, "default", "--format", "toml")
	assert.Equal(t, 2, code)
}

func TestConfigCommands(t *testing.T) {
	cfgPath := writeFile(t, "dpmon.yaml", "logLevel: debug\nredis:\n  password: hunter2\n")

	code, out, _ := run(t, "--config", cfgPath, "config", "validate")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "is valid")

	code, out, _ = run(t, "--config", cfgPath, "config", "dump")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "logLevel: debug")
	assert.NotContains(t, out, "hunter2")

	broken := writeFile(t, "broken.yaml", "logLevel: loud\n")
	code, _, errOut := run(t, "--config", broken, "config", "validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "logLevel")
}

func TestHistoryCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(dbPath)
	require.NoError(t, err)
	h, err := settings.NewHolder(settings.Default(), "")
	require.NoError(t, err)
	_, err = store.Record(context.Background(), h.Current())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	code, out, _ := run(t, "history", "list", "--db", dbPath)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "REVISION")
	assert.Contains(t, out, h.Current().Revision[:12])

	code, out, _ = run(t, "history", "verify", "--db", dbPath, "--full")
	require.Equal(t, 0, code)
	assert.Equal(t, "ok\n", out)

	code, _, _ = run(t, "history", "list")
	assert.Equal(t, 2, code, "history disabled by default")
}

func TestServeRejectsBadConfig(t *testing.T) {
	code, _, _ := run(t, "--config", writeFile(t, "dpmon.yaml", "api:\n  listen: x\n"), "serve")
	assert.Equal(t, 2, code)
}
