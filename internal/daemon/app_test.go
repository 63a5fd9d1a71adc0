// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/log"
)

type blockingManager struct {
	started  atomic.Bool
	shutdown atomic.Bool
	startErr error
}

func (m *blockingManager) Start(ctx context.Context) error {
	m.started.Store(true)
	if m.startErr != nil {
		return m.startErr
	}
	<-ctx.Done()
	return nil
}

func (m *blockingManager) Shutdown(context.Context) error {
	m.shutdown.Store(true)
	return nil
}

func (m *blockingManager) RegisterShutdownHook(string, ShutdownHook) {}

func runApp(t *testing.T, app *App, ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("App.Run did not return")
		return nil
	}
}

func TestApp_RequiresManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil)
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_RunnersStopWithContext(t *testing.T) {
	mgr := &blockingManager{}
	started := make(chan struct{})
	var stopped atomic.Bool
	app := NewApp(log.WithComponent("test"), mgr, nil,
		WithReloadSignal(nil),
		WithRunner("worker", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			stopped.Store(true)
			return ctx.Err()
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := runApp(t, app, ctx)
	<-started
	cancel()

	require.NoError(t, waitErr(t, done))
	assert.True(t, stopped.Load())
	assert.True(t, mgr.started.Load())
}

func TestApp_RunnerFailureStopsServers(t *testing.T) {
	mgr := &blockingManager{}
	boom := errors.New("badger corrupted")
	app := NewApp(log.WithComponent("test"), mgr, nil,
		WithReloadSignal(nil),
		WithRunner("jobs", func(context.Context) error { return boom }))

	err := waitErr(t, runApp(t, app, context.Background()))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "jobs")
}

func TestApp_ManagerFailureShutsDown(t *testing.T) {
	mgr := &blockingManager{startErr: errors.New("address in use")}
	app := NewApp(log.WithComponent("test"), mgr, nil, WithReloadSignal(nil))

	err := waitErr(t, runApp(t, app, context.Background()))
	require.Error(t, err)
	assert.True(t, mgr.shutdown.Load())
}

func TestApp_AppliesReloadedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: "+dir+"\nlogLevel: info\n"), 0o600))
	loader := config.NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewConfigHolder(initial, loader, "")

	applied := make(chan config.AppConfig, 1)
	ready := make(chan struct{})
	app := NewApp(log.WithComponent("test"), &blockingManager{}, holder,
		WithReloadSignal(nil),
		WithReloadFunc(func(cfg config.AppConfig) { applied <- cfg }),
		WithRunner("ready", func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := runApp(t, app, ctx)
	<-ready

	require.NoError(t, os.WriteFile(path, []byte("dataDir: "+dir+"\nlogLevel: debug\n"), 0o600))
	require.NoError(t, holder.Reload(ctx))

	select {
	case cfg := <-applied:
		assert.Equal(t, "debug", cfg.LogLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("reload func was not called")
	}

	cancel()
	require.NoError(t, waitErr(t, done))
}
