// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cutroom/cutroom/internal/persistence/sqlite"
)

// errCorrupt makes the command exit non-zero after the diagnostics are printed.
var errCorrupt = errors.New("database integrity check failed")

func newDBCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Library database maintenance",
	}
	cmd.AddCommand(newDBVerifyCmd(opts))
	return cmd
}

func newDBVerifyCmd(opts *rootOptions) *cobra.Command {
	var (
		path string
		mode string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the library database for corruption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode = strings.ToLower(strings.TrimSpace(mode))
			if mode != "quick" && mode != "full" {
				return fmt.Errorf("invalid mode %q: use quick or full", mode)
			}
			if path == "" {
				cfg, _, err := opts.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Database.Path
			}

			issues, err := sqlite.VerifyIntegrity(cmd.Context(), path, mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				fmt.Fprintf(out, "OK  %s (%s)\n", path, mode)
				return nil
			}
			fmt.Fprintf(out, "CORRUPT  %s (%s)\n", path, mode)
			for _, issue := range issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			return errCorrupt
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "database file (default: database.path from config)")
	cmd.Flags().StringVar(&mode, "mode", "quick", "verification mode: quick or full")
	return cmd
}
