// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across packages.
const (
	SettingsPathKey     = "settings.path"
	SettingsRevisionKey = "settings.revision"
	SettingsEpochKey    = "settings.epoch"
	SettingsChangedKey  = "settings.changed"
	PublisherKey        = "settings.publisher"

	GraphiteLinesKey   = "graphite.lines"
	GraphitePendingKey = "graphite.pending"

	ErrorTypeKey = "error.type"
)

// SettingsAttributes describes one settings snapshot.
func SettingsAttributes(path, revision string, epoch uint64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SettingsRevisionKey, revision),
		attribute.Int64(SettingsEpochKey, int64(epoch)),
	}
	if path != "" {
		attrs = append(attrs, attribute.String(SettingsPathKey, path))
	}
	return attrs
}

// ErrorAttributes tags a span with an error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool("error", true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
