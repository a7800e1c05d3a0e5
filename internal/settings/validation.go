// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ManuGH/dpmon/internal/validate"
)

var (
	dataSourceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	panelIDPattern        = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)
)

// Validate checks every field and reports all violations at once.
func (d Document) Validate() error {
	v := validate.New()

	if len(d.DataSources) == 0 {
		v.AddError("datasources", "at least one data source is required", nil)
	}

	var defaults []string
	for _, name := range d.DataSourceNames() {
		ds := d.DataSources[name]
		field := "datasources." + name

		v.Pattern(field, name, dataSourceNamePattern, "[A-Za-z0-9_-]+")
		v.OneOf(field+".type", ds.Type, KnownTypes)
		v.URL(field+".url", ds.URL, []string{"http", "https"})
		if ds.Default {
			defaults = append(defaults, name)
		}
	}
	if len(defaults) > 1 {
		v.AddError("datasources",
			fmt.Sprintf("at most one data source may be default, got %s", strings.Join(defaults, ", ")),
			defaults)
	}

	if _, err := ParseRoute(d.DefaultRoute); err != nil {
		v.AddError("default_route", err.Error(), d.DefaultRoute)
	}

	if !d.TimezoneOffset.Valid() {
		v.AddError("timezoneOffset",
			fmt.Sprintf("must be a ±HHMM offset between %d and %d, got %d", MinTimezoneOffset, MaxTimezoneOffset, d.TimezoneOffset),
			int(d.TimezoneOffset))
	}

	if dur, err := d.PlaylistTimespan.Duration(); err != nil {
		v.AddError("playlist_timespan", err.Error(), string(d.PlaylistTimespan))
	} else if dur <= 0 {
		v.AddError("playlist_timespan", "must be greater than zero", string(d.PlaylistTimespan))
	}

	seen := make(map[string]struct{}, len(d.Plugins.Panels))
	for i, id := range d.Plugins.Panels {
		field := fmt.Sprintf("plugins.panels[%d]", i)
		v.Pattern(field, id, panelIDPattern, "[A-Za-z0-9_./-]+")
		if _, dup := seen[id]; dup {
			v.AddError(field, "duplicate panel plugin", id)
		}
		seen[id] = struct{}{}
	}

	return v.Err()
}
