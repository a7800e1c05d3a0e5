// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package monitor runs the collection loop that feeds the Graphite data
// source: host statistics and web server requests, once per interval.
package monitor

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ManuGH/dpmon/internal/accesslog"
	"github.com/ManuGH/dpmon/internal/boxinfo"
	"github.com/ManuGH/dpmon/internal/graphite"
	xglog "github.com/ManuGH/dpmon/internal/log"
	"github.com/ManuGH/dpmon/internal/metrics"
	"github.com/rs/zerolog"
)

// maxLinesPerTick bounds how much of a log burst one tick consumes.
const maxLinesPerTick = 10000

// Sink receives samples. *graphite.Client implements it.
type Sink interface {
	AddAll(samples map[string]float64)
	Flush(ctx context.Context) error
	Close() error
}

// Config selects what to collect.
type Config struct {
	Interval time.Duration
	Devices  []string
	// AccessLog is the nginx timed_combined log; empty disables request metrics.
	AccessLog string
	ProcRoot  string
	SysRoot   string
}

// DefaultSchema sums request counters and averages everything else.
func DefaultSchema() graphite.Schema {
	return graphite.Schema{
		{Pattern: "requests.count", Aggregate: graphite.AggregateSum},
		{Pattern: "requests.bytes_sent", Aggregate: graphite.AggregateSum},
		{Pattern: "requests.status.*", Aggregate: graphite.AggregateSum},
	}
}

// Monitor owns the collectors and the sink.
type Monitor struct {
	cfg    Config
	box    *boxinfo.BoxInfo
	parser *accesslog.Parser
	tailer *accesslog.Tailer
	sink   Sink
	logger zerolog.Logger
}

// New prepares the collectors. A missing access log is not an error; it is
// opened once it appears.
func New(cfg Config, sink Sink) (*Monitor, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	box, err := boxinfo.New(boxinfo.Options{ProcRoot: cfg.ProcRoot, SysRoot: cfg.SysRoot, Devices: cfg.Devices})
	if err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:    cfg,
		box:    box,
		parser: accesslog.NewParser(),
		sink:   sink,
		logger: xglog.WithComponent("monitor"),
	}, nil
}

// Run collects every interval until ctx ends, then closes the sink.
// Collection errors are logged and counted, never returned.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().
		Str(xglog.FieldEvent, "monitor.start").
		Dur("interval", m.cfg.Interval).
		Str("access_log", m.cfg.AccessLog).
		Msg("monitor started")

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	defer m.close()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Str(xglog.FieldEvent, "monitor.stop").Msg("monitor stopped")
			return nil
		case <-ticker.C:
			m.Collect(ctx)
		}
	}
}

// Collect runs one tick: box info, access log, flush.
func (m *Monitor) Collect(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.ObserveCollect(time.Since(start)) }()

	if err := m.box.Refresh(); err != nil {
		metrics.IncCollectError("boxinfo")
		m.logger.Warn().Err(err).Str(xglog.FieldEvent, "monitor.boxinfo_failed").Msg("box info refresh failed")
	} else {
		m.sink.AddAll(m.box.Metrics())
	}

	m.collectAccessLog()

	if err := m.sink.Flush(ctx); err != nil {
		metrics.IncCollectError("graphite")
		m.logger.Warn().Err(err).Str(xglog.FieldEvent, "monitor.flush_failed").Msg("graphite flush failed")
	}
}

func (m *Monitor) collectAccessLog() {
	if m.cfg.AccessLog == "" {
		return
	}
	if m.tailer == nil {
		t, err := accesslog.OpenTailer(m.cfg.AccessLog)
		if err != nil {
			metrics.IncCollectError("accesslog")
			m.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "monitor.accesslog_unavailable").
				Str(xglog.FieldPath, m.cfg.AccessLog).
				Msg("access log not readable yet")
			return
		}
		m.tailer = t
	}

	for i := 0; i < maxLinesPerTick; i++ {
		line, err := m.tailer.ReadLine()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			metrics.IncCollectError("accesslog")
			m.logger.Warn().Err(err).Str(xglog.FieldEvent, "monitor.accesslog_read_failed").Msg("access log read failed")
			_ = m.tailer.Close()
			m.tailer = nil
			return
		}

		entry, ok, err := m.parser.Parse(line)
		switch {
		case err != nil:
			metrics.IncAccessLogLine("unparsed")
			m.logger.Debug().Err(err).Str(xglog.FieldEvent, "monitor.accesslog_unparsed").Msg("skipping line")
		case !ok:
			metrics.IncAccessLogLine("skipped")
		default:
			metrics.IncAccessLogLine("counted")
			m.sink.AddAll(accesslog.Metrics(entry))
		}
	}
}

func (m *Monitor) close() {
	if m.tailer != nil {
		_ = m.tailer.Close()
		m.tailer = nil
	}
	if err := m.sink.Close(); err != nil {
		m.logger.Warn().Err(err).Str(xglog.FieldEvent, "monitor.close_failed").Msg("closing sink failed")
	}
}
