// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// validate checks dpmon settings documents without starting the daemon.
//
// Usage:
//
//	validate -f settings.json
//	validate --file settings.yaml
//
// Exit codes:
//   - 0: the document is valid
//   - 1: the document is invalid (parse or validation error)
//   - 2: usage error
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/ManuGH/dpmon/internal/validate"
	"github.com/ManuGH/dpmon/internal/version"
)

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	var showVersion bool
	fs.StringVar(&file, "file", "", "path to a JSON or YAML settings document")
	fs.StringVar(&file, "f", "", "path to a JSON or YAML settings document (shorthand)")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}
	if file == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Usage:")
		fmt.Fprintln(stderr, "  validate -f settings.json")
		return 2
	}

	doc, err := settings.LoadFile(file)
	if err != nil {
		fmt.Fprintf(stderr, "Settings error in %s:\n", file)
		var verr validate.ValidationError
		if errors.As(err, &verr) {
			for _, e := range verr.Errors() {
				fmt.Fprintf(stderr, "  %s: %s\n", e.Field, e.Message)
			}
		} else {
			fmt.Fprintf(stderr, "  %v\n", err)
		}
		return 1
	}

	name, _, _ := doc.DefaultDataSource()
	fmt.Fprintf(stdout, "✓ %s is valid\n", file)
	fmt.Fprintf(stdout, "  Data sources: %d (default %s)\n", len(doc.DataSources), name)
	fmt.Fprintf(stdout, "  Default route: %s\n", doc.DefaultRoute)
	fmt.Fprintf(stdout, "  Timezone offset: %s\n", doc.TimezoneOffset)
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
