// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	v, err := UserVersion(db)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestVerifyIntegrity_Healthy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.sqlite")
	db, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, data TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO t (data) VALUES ('a'), ('b')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	for _, mode := range []string{"quick", "full"} {
		issues, err := VerifyIntegrity(path, mode)
		require.NoError(t, err, mode)
		assert.Nil(t, issues, mode)
	}
}

func TestVerifyIntegrity_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.sqlite")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0o600))

	issues, err := VerifyIntegrity(path, "quick")
	if err == nil {
		assert.NotEmpty(t, issues)
	}
}
