// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Offset bounds in ±HHMM form (UTC-12:00 .. UTC+14:00).
const (
	MinTimezoneOffset TimezoneOffset = -1200
	MaxTimezoneOffset TimezoneOffset = 1400
)

// TimezoneOffset is the offset between the browser and the graphite-web clock,
// encoded as a signed ±HHMM integer: -500 is UTC-05:00, 530 is UTC+05:30.
type TimezoneOffset int

// ParseTimezoneOffset parses "-0500", "+0530", "0000", "+05:30" and plain
// integers. Digits are always read as decimal ±HHMM, so "-0500" is -500, not an octal.
func ParseTimezoneOffset(s string) (TimezoneOffset, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("timezone offset is empty")
	}

	sign := 1
	body := raw
	switch body[0] {
	case '-':
		sign = -1
		body = body[1:]
	case '+':
		body = body[1:]
	}

	if h, m, ok := strings.Cut(body, ":"); ok {
		if len(h) == 0 || len(h) > 2 || len(m) != 2 {
			return 0, fmt.Errorf("invalid timezone offset %q", raw)
		}
		if len(h) == 1 {
			h = "0" + h
		}
		body = h + m
	}

	if body == "" || len(body) > 4 {
		return 0, fmt.Errorf("invalid timezone offset %q", raw)
	}
	for _, r := range body {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid timezone offset %q", raw)
		}
	}

	v, err := strconv.Atoi(body)
	if err != nil {
		return 0, fmt.Errorf("invalid timezone offset %q: %w", raw, err)
	}
	return TimezoneOffset(sign * v), nil
}

// Hours returns the whole-hour part (signed).
func (o TimezoneOffset) Hours() int { return int(o) / 100 }

// Minutes returns the minute part (signed).
func (o TimezoneOffset) Minutes() int { return int(o) % 100 }

// Valid reports whether o lies in range and has a minute part below 60.
func (o TimezoneOffset) Valid() bool {
	if o < MinTimezoneOffset || o > MaxTimezoneOffset {
		return false
	}
	m := o.Minutes()
	return m > -60 && m < 60
}

// Duration converts the offset to a signed duration east of UTC.
func (o TimezoneOffset) Duration() time.Duration {
	return time.Duration(o.Hours())*time.Hour + time.Duration(o.Minutes())*time.Minute
}

// Location returns a fixed zone carrying the offset.
func (o TimezoneOffset) Location() *time.Location {
	return time.FixedZone(o.String(), int(o.Duration().Seconds()))
}

// String renders the offset in the ±HHMM form graphite-web documents.
func (o TimezoneOffset) String() string {
	v := int(o)
	sign := "+"
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%04d", sign, v)
}

// UnmarshalJSON accepts a JSON number or a ±HHMM string.
func (o *TimezoneOffset) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseTimezoneOffset(s)
		if err != nil {
			return err
		}
		*o = v
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("timezoneOffset must be an integer or a ±HHMM string, got %s", raw)
	}
	*o = TimezoneOffset(v)
	return nil
}

// UnmarshalYAML reads the scalar text directly: yaml.v3 would otherwise
// resolve "-0500" as a YAML 1.1 octal.
func (o *TimezoneOffset) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timezoneOffset must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!int", "!!str", "!!float":
	default:
		return fmt.Errorf("line %d: timezoneOffset must be an integer or a ±HHMM string, got %s", node.Line, node.ShortTag())
	}
	v, err := ParseTimezoneOffset(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*o = v
	return nil
}
