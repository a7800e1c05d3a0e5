// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/dpmon/internal/api"
	"github.com/ManuGH/dpmon/internal/config"
	"github.com/ManuGH/dpmon/internal/graphite"
	"github.com/ManuGH/dpmon/internal/health"
	"github.com/ManuGH/dpmon/internal/history"
	xglog "github.com/ManuGH/dpmon/internal/log"
	"github.com/ManuGH/dpmon/internal/monitor"
	"github.com/ManuGH/dpmon/internal/publish"
	"github.com/ManuGH/dpmon/internal/resilience"
	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/ManuGH/dpmon/internal/telemetry"
	"github.com/cenkalti/backoff/v5"
)

// Bootstrap opens every component cfg enables and wires the publishers into
// the settings holder. On error everything opened so far is closed again.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (_ *App, err error) {
	a := &App{
		cfg:    cfg,
		logger: xglog.WithComponent("daemon"),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "dpmon",
		ServiceVersion: cfg.Version,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	a.holder, err = settings.OpenHolder(cfg.Settings.Path)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	a.holder.SetDebounce(cfg.Settings.Debounce)

	a.health = health.NewManager(cfg.Version)
	a.health.RegisterChecker(health.NewSettingsChecker(a.holder))

	if cfg.Settings.RenderPath != "" {
		a.holder.AddPublisher(settings.NewFilePublisher(cfg.Settings.RenderPath))
		a.health.RegisterChecker(health.NewFileChecker("config_js", cfg.Settings.RenderPath, 0))
	}

	if cfg.History.Enabled {
		a.history, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		a.holder.AddPublisher(a.history.Publisher())
		a.health.RegisterChecker(health.NewPingChecker("history", a.history.Ping))
	}

	if cfg.Redis.Enabled {
		a.redis, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.holder.AddPublisher(resilience.Guard(a.redis, resilience.DefaultThreshold, resilience.DefaultResetTimeout))
		a.health.RegisterChecker(health.NewOptionalPingChecker("redis", a.redis.HealthCheck))
	}

	if cfg.Graphite.Enabled {
		a.graphite, err = graphite.New(cfg.Graphite.ClientConfig(), cfg.Graphite.ClientSchema(monitor.DefaultSchema()))
		if err != nil {
			return nil, fmt.Errorf("graphite: %w", err)
		}
		a.health.RegisterChecker(health.NewSinkChecker("graphite", a.graphite.LastError))
	}

	if cfg.Monitor.Enabled {
		a.monitor, err = monitor.New(monitor.Config{
			Interval:  cfg.Monitor.Interval,
			Devices:   cfg.Monitor.Devices,
			AccessLog: cfg.Monitor.AccessLog,
			ProcRoot:  cfg.Monitor.ProcRoot,
			SysRoot:   cfg.Monitor.SysRoot,
		}, a.graphite)
		if err != nil {
			return nil, fmt.Errorf("monitor: %w", err)
		}
	}

	apiCfg := api.Config{
		ReloadRateLimit: cfg.API.ReloadRateLimit,
		ServeMetrics:    cfg.Metrics.ListenAddr == "",
	}
	if cfg.Telemetry.Enabled {
		apiCfg.TracingService = "dpmon-api"
	}
	deps := api.Deps{Holder: a.holder, Health: a.health, Version: cfg.Version}
	if a.history != nil {
		deps.History = a.history
	}
	a.api, err = api.New(apiCfg, deps)
	if err != nil {
		return nil, err
	}

	// Publishers see the start-up snapshot too; a failing one is not fatal.
	if perr := a.holder.Publish(ctx); perr != nil {
		a.logger.Warn().
			Err(perr).
			Str(xglog.FieldEvent, "daemon.initial_publish_failed").
			Msg("initial settings publish failed")
	}

	a.logger.Info().
		Str(xglog.FieldEvent, "daemon.bootstrapped").
		Str(xglog.FieldRevision, a.holder.Current().Revision).
		Bool("graphite", a.graphite != nil).
		Bool("monitor", a.monitor != nil).
		Bool("redis", a.redis != nil).
		Bool("history", a.history != nil).
		Msg("daemon components ready")
	return a, nil
}

// connectRedis retries the initial connection with exponential backoff.
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*publish.Redis, error) {
	logger := xglog.WithComponent("daemon")
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second

	tries := cfg.ConnectRetries
	if tries <= 0 {
		tries = 1
	}

	r, err := backoff.Retry(ctx, func() (*publish.Redis, error) {
		return publish.NewRedis(ctx, publish.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			Prefix:   cfg.Prefix,
		})
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "daemon.redis_retry").
				Dur("retry_in", next).
				Msg("redis not reachable, retrying")
		}),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return r, nil
}
