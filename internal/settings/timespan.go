// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var timespanPattern = regexp.MustCompile(`^\d+[smhd]$`)

// Timespan is a host duration literal: a count followed by s, m, h or d.
type Timespan string

// Duration parses the timespan.
func (t Timespan) Duration() (time.Duration, error) {
	s := string(t)
	if !timespanPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid timespan %q: want <count>[smhd]", s)
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	}

	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timespan %q: %w", s, err)
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("invalid timespan %q: overflows", s)
	}
	return time.Duration(n) * unit, nil
}

// String returns the literal.
func (t Timespan) String() string { return string(t) }
