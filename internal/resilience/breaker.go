// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience keeps a failing downstream from slowing every settings swap.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/dpmon/internal/log"
	"github.com/ManuGH/dpmon/internal/metrics"
	"github.com/ManuGH/dpmon/internal/settings"
)

// State is the breaker state as exported in metrics and logs.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned without calling the downstream while open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	DefaultThreshold    = 3
	DefaultResetTimeout = 30 * time.Second
)

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker opens after threshold consecutive failures and lets a single
// trial call through once resetTimeout has passed.
type CircuitBreaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	clock        clock

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

type Option func(*CircuitBreaker)

func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// NewCircuitBreaker applies the defaults for non-positive arguments.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	cb := &CircuitBreaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetBreakerState(name, string(StateClosed))
	return cb
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
		return true
	case StateHalfOpen:
		// one trial call at a time
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err == nil {
		cb.failures = 0
		cb.transition(StateClosed)
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		metrics.IncBreakerTrip(cb.name, "trial_failed")
		cb.transition(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.threshold:
		metrics.IncBreakerTrip(cb.name, "threshold")
		cb.transition(StateOpen)
	}
}

// transition requires cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if to == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetBreakerState(cb.name, string(to))

	logger := xglog.WithComponent("resilience")
	ev := logger.Info()
	if to == StateOpen {
		ev = logger.Warn()
	}
	ev.Str(xglog.FieldEvent, "breaker.transition").
		Str("breaker", cb.name).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("failures", cb.failures).
		Msg("circuit breaker state changed")
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GuardedPublisher skips a publisher while its breaker is open. A skipped
// round counts as a failure for the holder, which keeps the publisher stale
// and republishes the current snapshot on a later reload or retry tick.
type GuardedPublisher struct {
	next    settings.Publisher
	breaker *CircuitBreaker
}

// Guard wraps p with a breaker named after it.
func Guard(p settings.Publisher, threshold int, resetTimeout time.Duration, opts ...Option) *GuardedPublisher {
	return &GuardedPublisher{
		next:    p,
		breaker: NewCircuitBreaker("publisher_"+p.Name(), threshold, resetTimeout, opts...),
	}
}

func (g *GuardedPublisher) Name() string { return g.next.Name() }

func (g *GuardedPublisher) Publish(ctx context.Context, snap *settings.Snapshot) error {
	err := g.breaker.Execute(func() error { return g.next.Publish(ctx, snap) })
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("%s: %w", g.next.Name(), err)
	}
	return err
}

// State exposes the breaker for health reporting.
func (g *GuardedPublisher) State() State { return g.breaker.State() }
