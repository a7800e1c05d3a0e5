// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/ManuGH/dpmon/internal/config"
	"github.com/ManuGH/dpmon/internal/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the daemon configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the daemon configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := config.NewLoader(opts.configPath, version.Version).Load(); err != nil {
				return withCode(1, fmt.Errorf("configuration error in %q: %w", opts.configPath, err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration %q is valid\n", opts.configPath)
			return nil
		},
	})

	var format string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration (ENV > file > defaults)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader(opts.configPath, version.Version).Load()
			if err != nil {
				return withCode(1, err)
			}
			fc := config.ToFile(cfg)
			if fc.Redis != nil && fc.Redis.Password != "" {
				fc.Redis.Password = "***"
			}
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(fc); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(fc)
			default:
				return withCode(2, fmt.Errorf("unknown format %q (yaml, json)", format))
			}
		},
	}
	dump.Flags().StringVarP(&format, "format", "f", "yaml", "yaml or json")
	cmd.AddCommand(dump)
	return cmd
}
