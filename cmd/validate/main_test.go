// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "settings.json")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`{"timezoneOffset": "-0500"}`), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("datasources: {}\n"), 0o600))

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"valid", []string{"-f", good}, 0, "Timezone offset: -0500", ""},
		{"invalid", []string{"--file", bad}, 1, "", "datasources: at least one data source is required"},
		{"missing file", []string{"-f", filepath.Join(dir, "nope.json")}, 1, "", "Settings error"},
		{"no flag", nil, 2, "", "--file is required"},
		{"unknown flag", []string{"-x"}, 2, "", ""},
		{"version", []string{"-version"}, 0, "dev", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stdout.String(), tt.wantOut)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}
