// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/dpmon/internal/config"
	"github.com/ManuGH/dpmon/internal/history"
	"github.com/ManuGH/dpmon/internal/version"
	"github.com/spf13/cobra"
)

func openHistory(opts *rootOptions, dbPath string) (*history.Store, error) {
	if dbPath == "" {
		cfg, err := config.NewLoader(opts.configPath, version.Version).Load()
		if err != nil {
			return nil, withCode(2, err)
		}
		if !cfg.History.Enabled {
			return nil, withCode(2, errors.New("history is disabled in the configuration; pass --db"))
		}
		dbPath = cfg.History.Path
	}
	return history.Open(dbPath)
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the settings revision log",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database (defaults to the configured path)")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded revisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(opts, dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			revs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEPOCH\tREVISION\tAPPLIED\tSOURCE")
			for _, r := range revs {
				fmt.Fprintf(tw, "%d\t%d\t%.12s\t%s\t%s\n", r.ID, r.Epoch, r.Hash, r.AppliedAt.Format(time.RFC3339), r.Source)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "maximum revisions to show")

	var full bool
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Run an SQLite integrity check on the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(opts, dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			problems, err := store.Verify(full)
			if err != nil {
				return err
			}
			if len(problems) > 0 {
				return withCode(1, fmt.Errorf("integrity check failed: %s", strings.Join(problems, "; ")))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	verify.Flags().BoolVar(&full, "full", false, "run integrity_check instead of quick_check")

	cmd.AddCommand(list, verify)
	return cmd
}
