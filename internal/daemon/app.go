// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/rs/zerolog"
)

// Runner is a long-lived background subsystem owned by the App. It must
// return once ctx is cancelled.
type Runner struct {
	Name string
	Run  func(ctx context.Context) error
}

// ReloadFunc applies a freshly reloaded configuration to running components.
type ReloadFunc func(cfg config.AppConfig)

// App owns the long-lived runtime lifecycle (config watcher, reload wiring,
// background workers) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	runners      []Runner
	onReload     []ReloadFunc
	reloadSignal os.Signal
}

// AppOption customises an App.
type AppOption func(*App)

// WithRunner adds a background subsystem that runs alongside the servers.
func WithRunner(name string, run func(ctx context.Context) error) AppOption {
	return func(a *App) { a.runners = append(a.runners, Runner{Name: name, Run: run}) }
}

// WithReloadFunc registers fn to be called after every successful reload.
func WithReloadFunc(fn ReloadFunc) AppOption {
	return func(a *App) { a.onReload = append(a.onReload, fn) }
}

// WithReloadSignal overrides the signal that triggers a manual reload.
// A nil signal disables signal-triggered reloads.
func WithReloadSignal(sig os.Signal) AppOption {
	return func(a *App) { a.reloadSignal = sig }
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, opts ...AppOption) *App {
	a := &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		reloadSignal: syscall.SIGHUP,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		defer a.cfgHolder.Stop()
	}

	if a.cfgHolder != nil && len(a.onReload) > 0 {
		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					for _, fn := range a.onReload {
						fn(cfg)
					}
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	for _, r := range a.runners {
		g.Go(func() error {
			a.logger.Debug().Str("runner", r.Name).Msg("starting background runner")
			err := r.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Str("runner", r.Name).Msg("background runner failed")
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
