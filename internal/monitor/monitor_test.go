// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/dpmon/internal/graphite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeSink struct {
	mu       sync.Mutex
	samples  []map[string]float64
	flushes  int
	flushErr error
	closed   bool
}

func (s *fakeSink) AddAll(m map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, m)
}

func (s *fakeSink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return s.flushErr
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) snapshot() ([]map[string]float64, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]float64(nil), s.samples...), s.flushes, s.closed
}

func fakeHost(t *testing.T) (proc, sys string) {
	t.Helper()
	dir := t.TempDir()
	proc, sys = filepath.Join(dir, "proc"), filepath.Join(dir, "sys")
	require.NoError(t, os.MkdirAll(proc, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(sys, "block"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(proc, "meminfo"),
		[]byte("MemTotal: 100 kB\nMemFree: 40 kB\nSwapTotal: 0 kB\nSwapFree: 0 kB\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(proc, "loadavg"), []byte("1.00 0.50 0.25 1/10 99\n"), 0o644))
	return proc, sys
}

const request = `10.0.0.1 - - [2024-03-01T12:00:05+00:00] "GET / HTTP/1.1" 200 100 "-" "curl" 0.010 0.005` + "\n"

func TestCollect_BoxInfoAndAccessLog(t *testing.T) {
	proc, sys := fakeHost(t)
	logPath := filepath.Join(t.TempDir(), "access.log")

	sink := &fakeSink{}
	m, err := New(Config{ProcRoot: proc, SysRoot: sys, AccessLog: logPath}, sink)
	require.NoError(t, err)
	defer m.close()

	// log does not exist yet
	m.Collect(context.Background())
	samples, flushes, _ := sink.snapshot()
	require.Len(t, samples, 1)
	assert.Equal(t, float64(60*1024), samples[0]["box.mem.used"])
	assert.Equal(t, 1, flushes)

	require.NoError(t, os.WriteFile(logPath, nil, 0o644))
	m.Collect(context.Background()) // opens at end

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(request + "garbage\n" +
		`10.0.0.1 - - [x] "GET /missing HTTP/1.1" 404 0 "-" "curl" 0.001 -` + "\n" + request)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	m.Collect(context.Background())
	samples, flushes, _ = sink.snapshot()
	assert.Equal(t, 3, flushes)

	var requests int
	for _, s := range samples {
		if s["requests.count"] == 1 {
			requests++
			assert.Equal(t, 1.0, s["requests.status.2xx"])
			assert.Equal(t, 100.0, s["requests.bytes_sent"])
		}
	}
	assert.Equal(t, 2, requests)
}

func TestCollect_BoxInfoFailureStillFlushes(t *testing.T) {
	proc, sys := fakeHost(t)
	sink := &fakeSink{flushErr: errors.New("graphite down")}
	m, err := New(Config{ProcRoot: proc, SysRoot: sys, Devices: []string{"sdq"}}, sink)
	require.NoError(t, err)

	m.Collect(context.Background())
	samples, flushes, _ := sink.snapshot()
	assert.Empty(t, samples)
	assert.Equal(t, 1, flushes)
}

func TestRun_StopsAndClosesSink(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	proc, sys := fakeHost(t)
	sink := &fakeSink{}
	m, err := New(Config{ProcRoot: proc, SysRoot: sys, Interval: 10 * time.Millisecond}, sink)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, flushes, _ := sink.snapshot()
		return flushes >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	_, _, closed := sink.snapshot()
	assert.True(t, closed)
}

func TestDefaultSchema(t *testing.T) {
	require.NoError(t, DefaultSchema().Validate())

	var _ Sink = (*graphite.Client)(nil)
}
