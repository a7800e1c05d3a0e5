// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var jsIdentPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// RenderJS writes the document as the host's AMD config module:
//
//	define(['settings'], function (Settings) { return new Settings({...}); });
//
// A zero timezone offset renders as 0 so the host skips time range translation;
// any other offset renders as the quoted ±HHMM string the host hands to its
// date library.
func RenderJS(w io.Writer, d Document) error {
	d = d.normalized()
	buf := &bytes.Buffer{}

	buf.WriteString("define(['settings'],\nfunction (Settings) {\n  return new Settings({\n\n")

	buf.WriteString("    // Datasources\n    datasources: {\n")
	names := d.DataSourceNames()
	for i, name := range names {
		ds := d.DataSources[name]
		fmt.Fprintf(buf, "      %s: {\n", jsKey(name))
		fmt.Fprintf(buf, "        type: %s,\n", jsString(ds.Type))
		fmt.Fprintf(buf, "        url: %s,\n", jsString(ds.URL))
		fmt.Fprintf(buf, "        default: %t\n", ds.Default)
		buf.WriteString("      }")
		if i < len(names)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("    },\n\n")

	buf.WriteString("    // default start dashboard\n")
	fmt.Fprintf(buf, "    default_route: %s,\n\n", jsString(d.DefaultRoute))

	buf.WriteString("    // offset between the browser and graphite-web clocks (±HHMM)\n")
	if d.TimezoneOffset == 0 {
		buf.WriteString("    timezoneOffset: 0,\n\n")
	} else {
		fmt.Fprintf(buf, "    timezoneOffset: %s,\n\n", jsString(d.TimezoneOffset.String()))
	}

	buf.WriteString("    // set to false to disable unsaved changes warning\n")
	fmt.Fprintf(buf, "    unsaved_changes_warning: %t,\n\n", d.UnsavedChangesWarning)

	buf.WriteString("    // default timespan for the playlist feature\n")
	fmt.Fprintf(buf, "    playlist_timespan: %s,\n\n", jsString(string(d.PlaylistTimespan)))

	panels := make([]string, len(d.Plugins.Panels))
	for i, p := range d.Plugins.Panels {
		panels[i] = jsString(p)
	}
	buf.WriteString("    // custom panels\n    plugins: {\n")
	fmt.Fprintf(buf, "      panels: [%s]\n", strings.Join(panels, ", "))
	buf.WriteString("    }\n\n")

	buf.WriteString("  });\n});\n")

	_, err := io.Copy(w, buf)
	return err
}

// jsString quotes s as a JSON string, which is also a valid JS string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

func jsKey(s string) string {
	if jsIdentPattern.MatchString(s) {
		return s
	}
	return jsString(s)
}
