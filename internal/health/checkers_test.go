// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/resilience"
)

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("sqlite", func(context.Context) error { return nil })
	assert.Equal(t, "sqlite", ok.Name())
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	down := func(context.Context) error { return errors.New("connection refused") }
	res := NewPingChecker("sqlite", down).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "connection refused", res.Error)

	assert.Equal(t, StatusDegraded, NewOptionalPingChecker("redis", down).Check(context.Background()).Status)
}

func TestWritableChecker(t *testing.T) {
	c := NewWritableChecker("storage", func() error { return nil })
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	c = NewWritableChecker("storage", func() error { return os.ErrPermission })
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)
}

func TestBinaryChecker(t *testing.T) {
	have := map[string]bool{"ffmpeg": true, "ffprobe": true}
	c := NewBinaryChecker([]string{"ffmpeg", "ffprobe"}, []string{"yt-dlp"})
	c.lookPath = func(bin string) (string, error) {
		if have[bin] {
			return "/usr/bin/" + bin, nil
		}
		return "", errors.New("not found")
	}

	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Contains(t, res.Message, "yt-dlp")

	have["yt-dlp"] = true
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	delete(have, "ffprobe")
	res = c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "not found: ffprobe", res.Error)
}

func TestBreakerChecker(t *testing.T) {
	shazam := resilience.NewCircuitBreaker("health_test_shazam", 1, time.Minute)
	subs := resilience.NewCircuitBreaker("health_test_opensubtitles", 1, time.Minute)
	c := NewBreakerChecker(shazam, subs)

	res := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "2 circuits closed", res.Message)

	shazam.RecordFailure()
	res = c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "health_test_shazam=open", res.Message)
}

func TestQueueChecker(t *testing.T) {
	depth := 3
	c := NewQueueChecker(func() int { return depth }, 10)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	depth = 9
	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "9/10 queued", res.Message)
}

func TestPerformStartupChecks_DataDir(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Storage.Root = filepath.Join(cfg.DataDir, "media")
	cfg.Server.ListenAddr = "127.0.0.1:notaport"

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
	assert.DirExists(t, cfg.Storage.Root, "data dirs are created before later checks")
}

func TestCheckDataDir_RejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Error(t, checkDataDir(zerolog.Nop(), file))
	assert.NoError(t, checkDataDir(zerolog.Nop(), ""))
}

func TestCheckUpstreamURLs(t *testing.T) {
	cfg := config.Defaults()
	cfg.OpenSubtitles.BaseURL = "https://api.opensubtitles.com/api/v1"
	require.NoError(t, checkUpstreamURLs(cfg))

	cfg.Shazam.BaseURL = "ftp://shazam"
	err := checkUpstreamURLs(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shazam.baseUrl")
}

func TestCheckBinaries(t *testing.T) {
	cfg := config.Defaults()
	missing := func(bin string) (string, error) {
		if bin == cfg.FFmpeg.FFprobeBin {
			return "", errors.New("not found")
		}
		return bin, nil
	}
	err := checkBinaries(zerolog.Nop(), cfg, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffprobe")

	noYTDLP := func(bin string) (string, error) {
		if bin == cfg.YTDLP.Bin {
			return "", errors.New("not found")
		}
		return bin, nil
	}
	assert.NoError(t, checkBinaries(zerolog.Nop(), cfg, noYTDLP), "yt-dlp is optional")
}
