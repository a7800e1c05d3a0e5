// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errDown = errors.New("connection refused")

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	clock := &mockClock{now: time.Unix(1000, 0)}
	cb := NewCircuitBreaker("test", 2, 10*time.Second, WithClock(clock))

	fail := func() error { return errDown }
	ok := func() error { return nil }

	assert.ErrorIs(t, cb.Execute(fail), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not call downstream")

	clock.now = clock.now.Add(10 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errDown, "trial call runs after reset timeout")
	assert.Equal(t, StateOpen, cb.State(), "failed trial reopens")

	clock.now = clock.now.Add(10 * time.Second)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute)
	_ = cb.Execute(func() error { return errDown })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errDown })
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SingleTrialCall(t *testing.T) {
	clock := &mockClock{now: time.Unix(0, 0)}
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock(clock))
	_ = cb.Execute(func() error { return errDown })
	clock.now = clock.now.Add(time.Second)

	inner := make(chan error, 1)
	release := make(chan struct{})
	go func() {
		inner <- cb.Execute(func() error { <-release; return nil })
	}()
	require.Eventually(t, func() bool { return cb.State() == StateHalfOpen }, time.Second, time.Millisecond)

	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
	close(release)
	require.NoError(t, <-inner)
	assert.Equal(t, StateClosed, cb.State())
}

type flakyPublisher struct {
	err   error
	calls int
}

func (f *flakyPublisher) Name() string { return "redis" }
func (f *flakyPublisher) Publish(context.Context, *settings.Snapshot) error {
	f.calls++
	return f.err
}

func TestGuard(t *testing.T) {
	h, err := settings.NewHolder(settings.Default(), "")
	require.NoError(t, err)
	snap := h.Current()

	clock := &mockClock{now: time.Unix(0, 0)}
	p := &flakyPublisher{err: errDown}
	g := Guard(p, 1, time.Minute, WithClock(clock))
	assert.Equal(t, "redis", g.Name())

	assert.ErrorIs(t, g.Publish(context.Background(), snap), errDown)
	err = g.Publish(context.Background(), snap)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "redis")
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, StateOpen, g.State())

	p.err = nil
	clock.now = clock.now.Add(time.Minute)
	require.NoError(t, g.Publish(context.Background(), snap))
	assert.Equal(t, 2, p.calls)
}
