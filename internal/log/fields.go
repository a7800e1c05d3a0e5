// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldRequestID = "request_id"
	FieldRevision  = "revision"
	FieldEpoch     = "epoch"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Path / URL fields
	FieldPath       = "path"
	FieldRenderPath = "render_path"
	FieldURL        = "url"

	// Graphite fields
	FieldGraphiteAddr = "graphite_addr"
	FieldLines        = "lines"
	FieldPending      = "pending"

	// Monitor fields
	FieldDevice = "device"
	FieldMetric = "metric"
)
