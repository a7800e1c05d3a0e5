// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Settings lifecycle
	settingsReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpmon_settings_reloads_total",
		Help: "Settings reload attempts by outcome",
	}, []string{"outcome"}) // outcome=success|load_error|invalid|unchanged

	settingsEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dpmon_settings_epoch",
		Help: "Epoch of the active settings snapshot",
	})

	settingsLastReload = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dpmon_settings_last_reload_timestamp_seconds",
		Help: "Unix time of the last successful settings swap",
	})

	settingsValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dpmon_settings_validation_errors_total",
		Help: "Total number of settings validation errors",
	})

	settingsPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpmon_settings_publish_total",
		Help: "Settings publish attempts by publisher and outcome",
	}, []string{"publisher", "outcome"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dpmon_breaker_state",
		Help: "Circuit breaker state (1 for the active state)",
	}, []string{"breaker", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpmon_breaker_trips_total",
		Help: "Circuit breaker openings by reason",
	}, []string{"breaker", "reason"}) // reason=threshold|trial_failed

	// Graphite feeder
	graphiteLinesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dpmon_graphite_lines_sent_total",
		Help: "Plaintext lines written to Graphite",
	})

	graphiteSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dpmon_graphite_send_errors_total",
		Help: "Failed Graphite sends after retry",
	})

	graphiteDroppedLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dpmon_graphite_dropped_lines_total",
		Help: "Queued lines dropped because the pending queue was full",
	})

	graphitePendingLines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dpmon_graphite_pending_lines",
		Help: "Lines waiting to be sent to Graphite",
	})

	graphiteReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpmon_graphite_reconnects_total",
		Help: "Graphite connection attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure|throttled

	// Collector loop
	monitorCollectErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpmon_monitor_collect_errors_total",
		Help: "Collector errors by source",
	}, []string{"source"}) // source=boxinfo|accesslog|graphite

	monitorCollectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dpmon_monitor_collect_duration_seconds",
		Help:    "Time spent in one collector tick",
		Buckets: prometheus.DefBuckets,
	})

	accessLogLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpmon_accesslog_lines_total",
		Help: "Access log lines read by outcome",
	}, []string{"outcome"}) // outcome=counted|skipped|unparsed
)

func IncSettingsReload(outcome string) { settingsReloadsTotal.WithLabelValues(outcome).Inc() }

// RecordSettingsSwap marks a successful snapshot swap.
func RecordSettingsSwap(epoch uint64, at time.Time) {
	settingsReloadsTotal.WithLabelValues("success").Inc()
	settingsEpoch.Set(float64(epoch))
	settingsLastReload.Set(float64(at.Unix()))
}

func AddSettingsValidationErrors(n int) { settingsValidationErrors.Add(float64(n)) }

func IncSettingsPublish(publisher string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	settingsPublishTotal.WithLabelValues(publisher, outcome).Inc()
}

var breakerStates = []string{"closed", "open", "half-open"}

// SetBreakerState sets exactly one state series of name to 1.
func SetBreakerState(name, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(name, s).Set(v)
	}
}

func IncBreakerTrip(name, reason string) { breakerTrips.WithLabelValues(name, reason).Inc() }

func AddGraphiteLinesSent(n int)    { graphiteLinesSent.Add(float64(n)) }
func IncGraphiteSendError()         { graphiteSendErrors.Inc() }
func AddGraphiteDroppedLines(n int) { graphiteDroppedLines.Add(float64(n)) }
func SetGraphitePending(n int)      { graphitePendingLines.Set(float64(n)) }
func IncGraphiteReconnect(outcome string) {
	graphiteReconnects.WithLabelValues(outcome).Inc()
}

func IncCollectError(source string)   { monitorCollectErrors.WithLabelValues(source).Inc() }
func ObserveCollect(d time.Duration)  { monitorCollectDuration.Observe(d.Seconds()) }
func IncAccessLogLine(outcome string) { accessLogLines.WithLabelValues(outcome).Inc() }
