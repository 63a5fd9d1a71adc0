// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/rs/zerolog"
)

func reserveListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForListen(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("listen timeout")
}

func testServerConfig(addr string) config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      addr,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     10 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 2 * time.Second,
	}
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	_, err = NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     zerolog.Nop(),
		APIHandler: http.NotFoundHandler(),
	})
	require.ErrorIs(t, err, ErrMissingLogger)

	_, err = NewManager(testServerConfig("127.0.0.1:0"), Deps{Logger: log.WithComponent("test")})
	require.ErrorIs(t, err, ErrMissingAPIHandler)
}

func TestManager_ServesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(addr), Deps{
		Logger: log.WithComponent("test"),
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("OK"))
		}),
	})
	require.NoError(t, err)

	var hookCalls []string
	var mu sync.Mutex
	for _, name := range []string{"first", "second"} {
		mgr.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			hookCalls = append(hookCalls, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()

	require.NoError(t, waitForListen(addr, 2*time.Second))
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	cancel()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"second", "first"}, hookCalls)
}

func TestManager_StartTwice(t *testing.T) {
	mgr, err := NewManager(testServerConfig(reserveListenAddr(t)), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	assert.Error(t, mgr.Start(ctx))
	cancel()
	require.NoError(t, <-errChan)
}

func TestManager_ShutdownHookErrorsAreJoined(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, err := NewManager(testServerConfig(reserveListenAddr(t)), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	boom := errors.New("close db")
	mgr.RegisterShutdownHook("library", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "hook library")
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}
}

func TestManager_Shutdown_NotStarted(t *testing.T) {
	mgr, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_WithMetrics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	metricsAddr := reserveListenAddr(t)
	mgr, err := NewManager(testServerConfig(reserveListenAddr(t)), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# HELP cutroom_test\n"))
		}),
		MetricsAddr: metricsAddr,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()

	require.NoError(t, waitForListen(metricsAddr, 2*time.Second))
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + metricsAddr + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "cutroom_test")

	cancel()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestManager_PropagatesListenErrors(t *testing.T) {
	testServer := httptest.NewServer(http.NotFoundHandler())
	defer testServer.Close()

	mgr, err := NewManager(testServerConfig(testServer.Listener.Addr().String()), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = mgr.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start API server")
}
