// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil contains durable file helpers.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteAtomic replaces path with the bytes produced by write. The data is written to a
// pending file in the same directory, fsynced and renamed over path, so readers never
// observe a partially written file.
func WriteAtomic(path string, perm os.FileMode, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(perm))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	// No-op once CloseAtomicallyReplace succeeded.
	defer func() { _ = pendingFile.Cleanup() }()

	if err := write(pendingFile); err != nil {
		return fmt.Errorf("write pending file: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}

// IsRegularFile returns an error unless path exists and is a regular file.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}
