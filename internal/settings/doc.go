// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package settings models the dashboard settings document consumed by the
// Grafana 1.x front end: data sources, the default route, the timezone offset,
// the playlist timespan and the panel plugin list.
//
// A Document is immutable once loaded. Reloads build a new Snapshot and swap it
// into the Holder; publishers then render the snapshot to config.js, Redis and
// the revision history.
package settings
