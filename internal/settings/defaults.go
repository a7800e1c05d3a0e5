// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

// Defaults of the stock deployment: one local graphite-web behind nginx.
const (
	DefaultDataSourceName   = "graphite"
	DefaultGraphiteURL      = "http://127.0.0.1:81"
	DefaultRoute            = "/dashboard/file/default.json"
	DefaultPlaylistTimespan = Timespan("1m")
)

// Default returns the settings document shipped with the deployment.
func Default() Document {
	return Document{
		DataSources: map[string]DataSource{
			DefaultDataSourceName: {
				Type:    TypeGraphite,
				URL:     DefaultGraphiteURL,
				Default: true,
			},
		},
		DefaultRoute:          DefaultRoute,
		TimezoneOffset:        0,
		UnsavedChangesWarning: true,
		PlaylistTimespan:      DefaultPlaylistTimespan,
		Plugins: Plugins{
			Panels: []string{},
		},
	}
}
