// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command cutroomd runs the cutroom media workspace API and its maintenance
// subcommands.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cutroom/cutroom/internal/config"
	xglog "github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/version"
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "cutroomd",
		Short:         "Media workspace API: uploads, cuts, subtitles, downloads and playlists",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML); defaults to $CUTROOM_CONFIG")

	root.AddCommand(
		newServeCmd(opts),
		newSRTCmd(),
		newDBCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return err
		},
	}
}

// resolveConfigPath prefers the flag over CUTROOM_CONFIG. Empty means
// defaults and environment only.
func (o *rootOptions) resolveConfigPath() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	return strings.TrimSpace(config.ParseString(config.EnvPrefix+"CONFIG", ""))
}

// loadConfig loads the configuration and reconfigures the global logger from it.
func (o *rootOptions) loadConfig() (config.AppConfig, string, error) {
	path := o.resolveConfigPath()
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return cfg, path, err
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "cutroomd",
		Version: cfg.Version,
	})
	return cfg, path, nil
}
