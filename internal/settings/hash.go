// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Hash returns the revision id of d: the hex sha256 of its compact canonical JSON.
// encoding/json sorts map keys, so equal documents hash equally.
func Hash(d Document) (string, error) {
	data, err := json.Marshal(d.normalized())
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Diff lists the wire keys whose values differ between old and next, sorted.
func Diff(old, next Document) []string {
	var changed []string

	names := make(map[string]struct{})
	for name := range old.DataSources {
		names[name] = struct{}{}
	}
	for name := range next.DataSources {
		names[name] = struct{}{}
	}
	for _, name := range slices.Sorted(maps.Keys(names)) {
		o, inOld := old.DataSources[name]
		n, inNext := next.DataSources[name]
		prefix := "datasources." + name
		switch {
		case inOld != inNext:
			changed = append(changed, prefix)
		case o.Type != n.Type:
			changed = append(changed, prefix+".type")
			fallthrough
		default:
			if inOld && o.URL != n.URL {
				changed = append(changed, prefix+".url")
			}
			if inOld && o.Default != n.Default {
				changed = append(changed, prefix+".default")
			}
		}
	}

	if old.DefaultRoute != next.DefaultRoute {
		changed = append(changed, "default_route")
	}
	if old.TimezoneOffset != next.TimezoneOffset {
		changed = append(changed, "timezoneOffset")
	}
	if old.UnsavedChangesWarning != next.UnsavedChangesWarning {
		changed = append(changed, "unsaved_changes_warning")
	}
	if old.PlaylistTimespan != next.PlaylistTimespan {
		changed = append(changed, "playlist_timespan")
	}
	if !slices.Equal(old.Plugins.Panels, next.Plugins.Panels) {
		changed = append(changed, "plugins.panels")
	}

	slices.Sort(changed)
	return changed
}
