// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic_ReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.js")

	require.NoError(t, WriteAtomic(path, 0644, func(w io.Writer) error {
		_, err := io.WriteString(w, "first")
		return err
	}))
	require.NoError(t, WriteAtomic(path, 0644, func(w io.Writer) error {
		_, err := io.WriteString(w, "second")
		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestWriteAtomic_KeepsOldFileOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.js")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	boom := errors.New("boom")
	err := WriteAtomic(path, 0600, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	require.ErrorIs(t, err, boom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "pending file must be cleaned up")
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0600))

	assert.NoError(t, IsRegularFile(file))
	assert.Error(t, IsRegularFile(dir))
	assert.Error(t, IsRegularFile(filepath.Join(dir, "missing")))
}
