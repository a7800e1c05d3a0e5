// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package accesslog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okLine = `10.0.0.1 - alice [2024-03-01T12:00:05+00:00] "GET /dashboard/file/default.json HTTP/1.1" 200 5120 "http://portal/" "Mozilla/5.0 (X11)" 0.012 0.010`

func TestParser_Parse(t *testing.T) {
	p := NewParser()

	e, ok, err := p.Parse(okLine + "\n")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Entry{
		Host:         "10.0.0.1",
		User:         "alice",
		Time:         "2024-03-01T12:00:05+00:00",
		Request:      "GET /dashboard/file/default.json HTTP/1.1",
		Status:       200,
		BytesSent:    5120,
		Referrer:     "http://portal/",
		Agent:        "Mozilla/5.0 (X11)",
		RequestTime:  0.012,
		UpstreamTime: 0.010,
	}, e)

	ts, err := e.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC), ts.UTC())
}

func TestParser_DashIsZero(t *testing.T) {
	line := `10.0.0.1 - - [2024-03-01T12:00:05+00:00] "GET / HTTP/1.1" 304 - "-" "curl/8" 0.000 -`
	e, ok, err := NewParser().Parse(line)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, e.BytesSent)
	assert.Zero(t, e.UpstreamTime)
	assert.Equal(t, "-", e.User)
}

func TestParser_SkipsErrors(t *testing.T) {
	for _, status := range []string{"101", "404", "500", "199"} {
		line := `10.0.0.1 - - [t] "GET / HTTP/1.1" ` + status + ` 0 "-" "-" 0.1 0.1`
		_, ok, err := NewParser().Parse(line)
		require.NoError(t, err, status)
		assert.False(t, ok, status)
	}
}

func TestParser_Malformed(t *testing.T) {
	for _, line := range []string{
		"",
		"garbage",
		`10.0.0.1 - - [t] "GET / HTTP/1.1" 200 0 "-" "-" 0.1`,
		`10.0.0.1 - - [t] "GET / HTTP/1.1" 200 abc "-" "-" 0.1 0.1`,
	} {
		_, _, err := NewParser().Parse(line)
		assert.ErrorIs(t, err, ErrParse, line)
	}
}

func TestMetrics(t *testing.T) {
	m := Metrics(Entry{Status: 302, BytesSent: 10, RequestTime: 0.5, UpstreamTime: 0.25})
	assert.Equal(t, map[string]float64{
		"requests.count":         1,
		"requests.bytes_sent":    10,
		"requests.request_time":  0.5,
		"requests.upstream_time": 0.25,
		"requests.status.3xx":    1,
	}, m)
}
