// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/ManuGH/dpmon/internal/fsutil"
	"github.com/ManuGH/dpmon/internal/settings"
	"github.com/ManuGH/dpmon/internal/validate"
	"github.com/spf13/cobra"
)

// printValidation lists each field error on its own line.
func printValidation(w io.Writer, path string, err error) {
	var verr validate.ValidationError
	if !errors.As(err, &verr) {
		fmt.Fprintf(w, "%s: %v\n", path, err)
		return
	}
	fmt.Fprintf(w, "%s: %d problem(s)\n", path, len(verr.Errors()))
	for _, e := range verr.Errors() {
		fmt.Fprintf(w, "  %s: %s\n", e.Field, e.Message)
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate settings documents (JSON or YAML)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				doc, err := settings.LoadFile(path)
				if err != nil {
					failed++
					printValidation(cmd.ErrOrStderr(), path, err)
					continue
				}
				rev, err := settings.Hash(doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (revision %.12s)\n", path, rev)
			}
			if failed > 0 {
				return withCode(1, fmt.Errorf("%d of %d settings files invalid", failed, len(args)))
			}
			return nil
		},
	}
}

func newRenderCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Render a settings document as config.js",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := settings.LoadFile(args[0])
			if err != nil {
				printValidation(cmd.ErrOrStderr(), args[0], err)
				return withCode(1, errors.New("settings invalid"))
			}
			if output == "" || output == "-" {
				return settings.RenderJS(cmd.OutOrStdout(), doc)
			}
			return fsutil.WriteAtomic(output, 0o644, func(w io.Writer) error {
				return settings.RenderJS(w, doc)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file atomically instead of stdout")
	return cmd
}

func newDefaultCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "default",
		Short: "Print the default settings document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := settings.Format(format)
			switch f {
			case settings.FormatJSON, settings.FormatYAML, settings.FormatJS:
			default:
				return withCode(2, fmt.Errorf("unknown format %q (json, yaml, js)", format))
			}
			return settings.Encode(cmd.OutOrStdout(), settings.Default(), f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(settings.FormatJSON), "json, yaml or js")
	return cmd
}
