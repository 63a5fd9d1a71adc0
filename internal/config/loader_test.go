// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Setenv("CUTROOM_DATA_DIR", t.TempDir())

	cfg, err := NewLoader("", "v-test").Load()
	require.NoError(t, err)

	assert.Equal(t, "v-test", cfg.Version)
	assert.Equal(t, ":8088", cfg.Server.ListenAddr)
	assert.Equal(t, time.Second, cfg.Subtitles.MinCueDuration)
	assert.Equal(t, "memory", cfg.Jobs.Backend)
	assert.Equal(t, filepath.Join(cfg.DataDir, "cutroom.db"), cfg.Database.Path)
	assert.Equal(t, filepath.Join(cfg.DataDir, "media"), cfg.Storage.Root)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `
dataDir: `+dir+`
logLevel: debug
server:
  listenAddr: ":9999"
subtitles:
  minCueDuration: 1500ms
jobs:
  backend: badger
  workers: 4
`)

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	assert.Equal(t, 1500*time.Millisecond, cfg.Subtitles.MinCueDuration)
	assert.Equal(t, "badger", cfg.Jobs.Backend)
	assert.Equal(t, 4, cfg.Jobs.Workers)
	// untouched sections keep defaults
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dataDir: "+dir+"\nserver:\n  listenAddr: \":9999\"\n")
	t.Setenv("CUTROOM_LISTEN", ":7000")
	t.Setenv("CUTROOM_SUBTITLE_MIN_CUE", "2s")
	t.Setenv("CUTROOM_CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("CUTROOM_SPOTIFY_CLIENT_ID", "spotify-id")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.Subtitles.MinCueDuration)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "spotify-id", cfg.Platforms.Spotify.ClientID)
	assert.Contains(t, l.ConsumedEnvKeys, "CUTROOM_LISTEN")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dataDir: "+dir+"\nnotAKey: true\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notAKey")
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CUTROOM_DATA_DIR", dir)
	path := writeFile(t, dir, "")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8088", cfg.Server.ListenAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "").Load()
	require.Error(t, err)
}

func TestLoad_InvalidValueFailsValidation(t *testing.T) {
	t.Setenv("CUTROOM_DATA_DIR", t.TempDir())
	t.Setenv("CUTROOM_CACHE_BACKEND", "memcached")

	_, err := NewLoader("", "").Load()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 1)
	assert.Contains(t, verr.Problems[0], "memcached")
}

func TestLoad_SubMillisecondMinCueRejected(t *testing.T) {
	t.Setenv("CUTROOM_DATA_DIR", t.TempDir())
	t.Setenv("CUTROOM_SUBTITLE_MIN_CUE", "500us")

	_, err := NewLoader("", "").Load()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Problems, 1)
	assert.Contains(t, verr.Problems[0], "subtitles.minCueDuration")
}
