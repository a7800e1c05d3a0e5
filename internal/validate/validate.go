// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate accumulates field errors for the settings document and
// the daemon configuration, so a single pass reports every problem.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Error is one failed field.
type Error struct {
	Field   string // dotted path, e.g. "datasources.graphite.url"
	Value   any
	Message string
}

func (e Error) Error() string {
	return e.Field + ": " + e.Message
}

// Validator collects errors in the order the checks ran.
type Validator struct {
	errors []Error
}

// ValidationError is returned by Err when at least one check failed.
// Callers unwrap it with errors.As to list the fields.
type ValidationError struct {
	errors []Error
}

func New() *Validator {
	return &Validator{}
}

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

func (v *Validator) Errors() []Error {
	return v.errors
}

// Err returns nil when valid, otherwise a ValidationError holding a copy of
// the collected errors.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

func (e ValidationError) Errors() []Error {
	return e.errors
}

// Fields lists the failed field paths without duplicates, in order.
func (e ValidationError) Fields() []string {
	out := make([]string, 0, len(e.errors))
	for _, fe := range e.errors {
		if !slices.Contains(out, fe.Field) {
			out = append(out, fe.Field)
		}
	}
	return out
}

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, fe := range e.errors {
		msgs[i] = fe.Error()
	}
	return "invalid: " + strings.Join(msgs, "; ")
}

// URL requires an absolute URL with a host and, when given, one of schemes.
func (v *Validator) URL(field, value string, schemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), value)
		return
	}
	if u.Host == "" {
		v.AddError(field, "URL must have a host", value)
		return
	}
	if len(schemes) > 0 && !slices.Contains(schemes, u.Scheme) {
		v.AddError(field, fmt.Sprintf("unsupported URL scheme %q (allowed: %s)", u.Scheme, strings.Join(schemes, ", ")), value)
	}
}

func (v *Validator) Port(field string, port int) {
	if port <= 0 || port > 65535 {
		v.AddError(field, fmt.Sprintf("port must be between 1 and 65535, got %d", port), port)
	}
}

// ListenAddr validates host:port. The host may be empty and port 0 picks a
// free port.
func (v *Validator) ListenAddr(field, addr string) {
	if strings.TrimSpace(addr) == "" {
		v.AddError(field, "listen address cannot be empty", addr)
		return
	}
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		v.AddError(field, "listen address must be host:port", addr)
		return
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		v.AddError(field, "listen address has an invalid port", addr)
		return
	}
	if port < 0 || port > 65535 {
		v.AddError(field, fmt.Sprintf("port must be between 0 and 65535, got %d", port), addr)
	}
}

// Range is inclusive on both ends.
func (v *Validator) Range(field string, value, lo, hi int) {
	if value < lo || value > hi {
		v.AddError(field, fmt.Sprintf("value must be between %d and %d, got %d", lo, hi, value), value)
	}
}

func (v *Validator) FloatRange(field string, value, lo, hi float64) {
	if value < lo || value > hi {
		v.AddError(field, fmt.Sprintf("value must be between %g and %g, got %g", lo, hi, value), value)
	}
}

func (v *Validator) MinDuration(field string, value, lo time.Duration) {
	if value < lo {
		v.AddError(field, fmt.Sprintf("duration must be at least %s, got %s", lo, value), value)
	}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.AddError(field, fmt.Sprintf("value must be one of %s, got %q", strings.Join(allowed, ", "), value), value)
	}
}

// Pattern expects re to be anchored; hint names the expected shape.
func (v *Validator) Pattern(field, value string, re *regexp.Regexp, hint string) {
	if !re.MatchString(value) {
		v.AddError(field, fmt.Sprintf("value %q does not match %s", value, hint), value)
	}
}

func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("value must be positive, got %d", value), value)
	}
}

func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.AddError(field, fmt.Sprintf("value cannot be negative, got %d", value), value)
	}
}
