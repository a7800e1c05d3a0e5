// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"maps"
	"slices"
)

// Backend type tags recognized by the dashboard host.
const (
	TypeGraphite      = "graphite"
	TypeInfluxDB      = "influxdb"
	TypeOpenTSDB      = "opentsdb"
	TypeElasticsearch = "elasticsearch"
)

// KnownTypes lists the data source type tags the host can query.
var KnownTypes = []string{TypeGraphite, TypeInfluxDB, TypeOpenTSDB, TypeElasticsearch}

// DataSource registers one queryable backend.
type DataSource struct {
	Type    string `json:"type" yaml:"type"`
	URL     string `json:"url" yaml:"url"`
	Default bool   `json:"default" yaml:"default"`
}

// Plugins lists additional panel types to register, in load order.
type Plugins struct {
	Panels []string `json:"panels" yaml:"panels"`
}

// Document is the settings payload handed to the host's settings constructor.
type Document struct {
	DataSources           map[string]DataSource `json:"datasources" yaml:"datasources"`
	DefaultRoute          string                `json:"default_route" yaml:"default_route"`
	TimezoneOffset        TimezoneOffset        `json:"timezoneOffset" yaml:"timezoneOffset"`
	UnsavedChangesWarning bool                  `json:"unsaved_changes_warning" yaml:"unsaved_changes_warning"`
	PlaylistTimespan      Timespan              `json:"playlist_timespan" yaml:"playlist_timespan"`
	Plugins               Plugins               `json:"plugins" yaml:"plugins"`
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := d
	out.DataSources = maps.Clone(d.DataSources)
	out.Plugins.Panels = slices.Clone(d.Plugins.Panels)
	return out.normalized()
}

// DataSourceNames returns the data source names in sorted order.
func (d Document) DataSourceNames() []string {
	return slices.Sorted(maps.Keys(d.DataSources))
}

// DefaultDataSource returns the data source dashboards use when they name none.
// An entry marked default wins; otherwise the host falls back to the first
// registered backend, which for a map means the lexicographically first name.
func (d Document) DefaultDataSource() (string, DataSource, bool) {
	names := d.DataSourceNames()
	for _, name := range names {
		if ds := d.DataSources[name]; ds.Default {
			return name, ds, true
		}
	}
	if len(names) == 0 {
		return "", DataSource{}, false
	}
	return names[0], d.DataSources[names[0]], true
}

// normalized replaces nil collections with empty ones so the wire form never
// carries null where the host expects an object or array.
func (d Document) normalized() Document {
	if d.DataSources == nil {
		d.DataSources = map[string]DataSource{}
	}
	if d.Plugins.Panels == nil {
		d.Plugins.Panels = []string{}
	}
	return d
}
