// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/dpmon/internal/config"
	"github.com/ManuGH/dpmon/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks verifies the filesystem the daemon needs before it starts serving.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Str("event", "startup.checks_start").Msg("running pre-flight startup checks")

	if cfg.History.Enabled {
		if err := checkWritableDir(logger, filepath.Dir(cfg.History.Path)); err != nil {
			return fmt.Errorf("history directory check failed: %w", err)
		}
	}
	if cfg.Settings.RenderPath != "" {
		if err := checkWritableDir(logger, filepath.Dir(cfg.Settings.RenderPath)); err != nil {
			return fmt.Errorf("render directory check failed: %w", err)
		}
	}
	if cfg.Settings.Path != "" {
		if err := checkFileReadable(cfg.Settings.Path); err != nil {
			return fmt.Errorf("settings file check failed: %w", err)
		}
	}
	if cfg.Monitor.Enabled && cfg.Monitor.AccessLog != "" {
		if err := checkFileReadable(cfg.Monitor.AccessLog); err != nil {
			logger.Warn().
				Err(err).
				Str("path", cfg.Monitor.AccessLog).
				Msg("access log not readable yet; request metrics start once it appears")
		}
	}

	logger.Info().Str("event", "startup.checks_passed").Msg("all startup checks passed")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	tmp, err := os.CreateTemp(path, ".write_test")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %w)", path, err)
	}
	_ = tmp.Close()
	_ = os.Remove(tmp.Name())

	logger.Info().Str("path", path).Msg("directory is writable")
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return err
	}
	return f.Close()
}
