// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/daemon"
	"github.com/cutroom/cutroom/internal/health"
	xglog "github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "cutroomd", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, configPath, err := opts.loadConfig()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
		return err
	}
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("config_source", source).
		Str("config_path", configPath).
		Str("data_dir", cfg.DataDir).
		Msg("starting cutroomd")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
		return err
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	// Stores close after every worker has returned.
	defer rt.close(logger)

	logRuntime(logger, cfg, rt)

	serverCfg := config.ParseServerConfigForApp(cfg)
	metricsAddr := ""
	if cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.ListenAddr
	}
	mgr, err := daemon.NewManager(serverCfg, daemon.Deps{
		Logger:         logger,
		Config:         cfg,
		APIHandler:     rt.api.Handler(),
		MetricsHandler: rt.metricsHandler,
		MetricsAddr:    metricsAddr,
	})
	if err != nil {
		return fmt.Errorf("create daemon manager: %w", err)
	}
	for _, h := range rt.hooks {
		mgr.RegisterShutdownHook(h.name, h.fn)
	}

	cfgHolder := config.NewConfigHolder(cfg, config.NewLoader(configPath, version.Version), configPath)
	app := daemon.NewApp(logger, mgr, cfgHolder,
		daemon.WithRunner("download-workers", rt.pool.Run),
		daemon.WithReloadFunc(applyLogLevel),
	)
	if err := app.Run(ctx); err != nil {
		logger.Error().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon app failed")
		return err
	}

	logger.Info().Msg("server exiting")
	return nil
}

// applyLogLevel keeps the global level in sync with reloaded config. The
// other settings take effect on restart.
func applyLogLevel(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(level)
}

func logRuntime(logger zerolog.Logger, cfg config.AppConfig, rt *services) {
	logger.Info().Msgf("→ Database: %s", cfg.Database.Path)
	logger.Info().Msgf("→ Storage: %s", cfg.Storage.Root)
	logger.Info().Msgf("→ Jobs: %s backend, %d workers", cfg.Jobs.Backend, cfg.Jobs.Workers)
	logger.Info().Msgf("→ Cache: %s", cfg.Cache.Backend)
	for _, name := range rt.disabled {
		logger.Warn().Str("upstream", name).Msg("→ upstream not configured, endpoints answer 503")
	}
	if !cfg.RateLimit.Enabled {
		logger.Warn().Msg("→ Rate limiting: disabled")
	}
}
