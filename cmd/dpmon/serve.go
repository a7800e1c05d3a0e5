// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/dpmon/internal/config"
	"github.com/ManuGH/dpmon/internal/daemon"
	"github.com/ManuGH/dpmon/internal/health"
	xglog "github.com/ManuGH/dpmon/internal/log"
	"github.com/ManuGH/dpmon/internal/version"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts.configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	xglog.Configure(xglog.Config{Version: version.Version})

	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		return withCode(2, err)
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: version.Version})
	logger := xglog.WithComponent("main")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return err
	}

	app, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info().
		Str(xglog.FieldEvent, "main.start").
		Str("config", configPath).
		Str("api", cfg.API.ListenAddr).
		Msg("starting dpmon")
	return app.Run(ctx)
}
