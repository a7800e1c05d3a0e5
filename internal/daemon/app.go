// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the long-lived runtime: HTTP listeners, the settings
// watcher, reload signals and the monitor loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/dpmon/internal/api"
	"github.com/ManuGH/dpmon/internal/config"
	"github.com/ManuGH/dpmon/internal/graphite"
	"github.com/ManuGH/dpmon/internal/health"
	"github.com/ManuGH/dpmon/internal/history"
	xglog "github.com/ManuGH/dpmon/internal/log"
	"github.com/ManuGH/dpmon/internal/monitor"
	"github.com/ManuGH/dpmon/internal/publish"
	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/ManuGH/dpmon/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 10 * time.Second
	staleRetryInterval = 30 * time.Second
)

// App holds the components built by Bootstrap.
type App struct {
	cfg    config.AppConfig
	logger zerolog.Logger

	holder    *settings.Holder
	health    *health.Manager
	api       *api.Server
	graphite  *graphite.Client
	monitor   *monitor.Monitor
	redis     *publish.Redis
	history   *history.Store
	telemetry *telemetry.Provider

	mu      sync.Mutex
	running bool
	addrs   map[string]string
}

// Holder exposes the settings holder, mainly for tests and CLI commands.
func (a *App) Holder() *settings.Holder { return a.holder }

// Addr returns the bound address of the named listener ("api" or "metrics")
// once Run has started it.
func (a *App) Addr(name string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addrs[name]
}

// Run serves until ctx is cancelled or a listener fails.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.addrs = make(map[string]string)
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if err := a.serve(ctx, g, "api", a.cfg.API.ListenAddr, a.api.Handler()); err != nil {
		return err
	}
	if a.cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := a.serve(ctx, g, "metrics", a.cfg.Metrics.ListenAddr, mux); err != nil {
			cancel()
			return errors.Join(err, g.Wait())
		}
	}

	// The watcher is best-effort: a missing directory must not stop the daemon.
	if a.cfg.Settings.Watch {
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "settings.watcher_start_failed").Msg("failed to start settings watcher")
		} else {
			defer a.holder.Stop()
		}
	}

	g.Go(func() error {
		a.reloadOnSignal(ctx, syscall.SIGHUP)
		return nil
	})

	g.Go(func() error {
		a.retryStalePublishers(ctx, staleRetryInterval)
		return nil
	})

	if a.monitor != nil {
		g.Go(func() error { return a.monitor.Run(ctx) })
	}

	a.logger.Info().Str(xglog.FieldEvent, "daemon.running").Msg("daemon running")
	err := g.Wait()
	a.logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("daemon stopped")
	return err
}

// serve binds addr synchronously so bind errors surface before Run blocks.
func (a *App) serve(ctx context.Context, g *errgroup.Group, name, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s listener: %w", name, err)
	}
	a.mu.Lock()
	a.addrs[name] = ln.Addr().String()
	a.mu.Unlock()

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		a.logger.Info().
			Str(xglog.FieldEvent, name+".server_listening").
			Str("addr", ln.Addr().String()).
			Msg("HTTP server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown: %w", name, err)
		}
		return nil
	})
	return nil
}

func (a *App) reloadOnSignal(ctx context.Context, sig os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			a.logger.Info().
				Str(xglog.FieldEvent, "settings.reload_signal").
				Str("signal", sig.String()).
				Msg("received reload signal, reloading settings")
			if err := a.holder.Reload(ctx); err != nil {
				a.logger.Warn().Err(err).Str(xglog.FieldEvent, "settings.reload_failed").Msg("settings reload failed")
			}
		}
	}
}

// retryStalePublishers covers publishers that failed while the document was
// unchanged, so recovery does not wait for the next edit or SIGHUP.
func (a *App) retryStalePublishers(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.holder.RetryStale(ctx); err != nil {
				a.logger.Debug().Err(err).Str(xglog.FieldEvent, "settings.retry_failed").Msg("stale publisher retry failed")
			}
		}
	}
}

// Close releases every component. It is safe on a partially built App.
func (a *App) Close() {
	if a.holder != nil {
		a.holder.Stop()
	}
	if a.graphite != nil {
		_ = a.graphite.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.history != nil {
		_ = a.history.Close()
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(context.Background()); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.shutdown_failed").Msg("telemetry shutdown failed")
		}
	}
}
