// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/dpmon/internal/log"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "DPMON_"

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "secret")
}

func logDefault(logger zerolog.Logger, key string, empty bool) {
	msg := "using default value"
	if empty {
		msg = "using default value (environment variable is empty)"
	}
	logger.Debug().Str("key", key).Str("source", "default").Msg(msg)
}

func logEnv(logger zerolog.Logger, key, value string) {
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", value)
	}
	ev.Msg("using environment variable")
}

// lookup returns the value of key and whether it is set and non-empty.
func lookup(logger zerolog.Logger, key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		logDefault(logger, key, false)
		return "", false
	}
	if strings.TrimSpace(v) == "" {
		logDefault(logger, key, true)
		return "", false
	}
	return v, true
}

// ParseString reads a string from the environment or returns defaultValue.
// The source is logged; secret values never are.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	logEnv(logger, key, v)
	return v
}

// ParseInt reads an integer, falling back to defaultValue on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logEnv(logger, key, v)
	return i
}

// ParseFloat reads a float64, falling back to defaultValue on parse errors.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	logEnv(logger, key, v)
	return f
}

// ParseDuration reads a Go duration such as "5s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logEnv(logger, key, v)
	return d
}

// ParseBool accepts true/false, 1/0 and yes/no, case-insensitive.
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		logEnv(logger, key, v)
		return true
	case "false", "0", "no":
		logEnv(logger, key, v)
		return false
	}
	logger.Warn().
		Str("key", key).
		Str("value", v).
		Bool("default", defaultValue).
		Msg("invalid boolean in environment variable, using default")
	return defaultValue
}

// ParseList reads a comma-separated list; blank items are dropped.
func ParseList(key string, defaultValue []string) []string {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	logEnv(logger, key, v)
	return out
}
