// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("daemon already running")

	// ErrRedisUnavailable wraps the last connection error after all retries failed.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
