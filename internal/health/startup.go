// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponentFromContext(ctx, "startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	for _, dir := range []string{cfg.DataDir, cfg.Storage.Root} {
		if err := checkDataDir(logger, dir); err != nil {
			return fmt.Errorf("data directory check failed: %w", err)
		}
	}
	if err := checkListenAddr(logger, cfg.Server.ListenAddr); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := checkUpstreamURLs(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := checkBinaries(logger, cfg, exec.LookPath); err != nil {
		return err
	}

	if strings.EqualFold(cfg.Jobs.Backend, "memory") {
		logger.Warn().Str("jobs_backend", cfg.Jobs.Backend).
			Msg("download jobs use the in-memory store; job state is lost on restart")
	}
	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; uploads and renders may be lost on reboot")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

// checkDataDir creates path when missing and probes it for writes.
func checkDataDir(logger zerolog.Logger, path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str(log.FieldPath, path).Msg("✓ data directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("✓ listen address is valid")
	return nil
}

// checkUpstreamURLs rejects configured base URLs that are not http(s).
func checkUpstreamURLs(cfg config.AppConfig) error {
	urls := map[string]string{
		"openSubtitles.baseUrl": cfg.OpenSubtitles.BaseURL,
		"translate.baseUrl":     cfg.Translate.BaseURL,
		"shazam.baseUrl":        cfg.Shazam.BaseURL,
	}
	for field, raw := range urls {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s scheme must be http or https, got: %q", field, u.Scheme)
		}
	}
	return nil
}

// checkBinaries requires ffmpeg and ffprobe. yt-dlp only gates video downloads.
func checkBinaries(logger zerolog.Logger, cfg config.AppConfig, lookPath func(string) (string, error)) error {
	for _, bin := range []string{cfg.FFmpeg.Bin, cfg.FFmpeg.FFprobeBin} {
		if _, err := lookPath(bin); err != nil {
			return fmt.Errorf("%s binary not found: %w", bin, err)
		}
	}
	if _, err := lookPath(cfg.YTDLP.Bin); err != nil {
		logger.Warn().Str("bin", cfg.YTDLP.Bin).Msg("yt-dlp not found; video downloads will fail")
	}
	logger.Info().Str("ffmpeg", cfg.FFmpeg.Bin).Msg("✓ media tools available")
	return nil
}
