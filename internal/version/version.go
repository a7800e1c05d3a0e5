// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package version carries build metadata for both binaries.
//
//	go build -ldflags "-X github.com/ManuGH/dpmon/internal/version.Version=v1.2.0 \
//	  -X github.com/ManuGH/dpmon/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String is the one-line form printed by the version commands.
func String() string {
	commit := Commit
	if commit == "unknown" {
		commit = vcsRevision()
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, commit, Date)
}

// vcsRevision falls back to the revision stamped by the go tool.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return "unknown"
}
