// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks the configuration for values the service cannot run with.
func Validate(cfg AppConfig) error {
	v := &ValidationError{}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		v.add("logLevel %q is not a valid level", cfg.LogLevel)
	}
	if cfg.DataDir == "" {
		v.add("dataDir must not be empty")
	}
	if cfg.Server.ListenAddr == "" {
		v.add("server.listenAddr must not be empty")
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		v.add("server.maxUploadBytes must be positive")
	}

	switch cfg.Jobs.Backend {
	case "memory", "badger":
	default:
		v.add("jobs.backend %q must be memory or badger", cfg.Jobs.Backend)
	}
	if cfg.Jobs.Workers < 1 {
		v.add("jobs.workers must be at least 1")
	}
	if cfg.Jobs.QueueSize < 1 {
		v.add("jobs.queueSize must be at least 1")
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			v.add("cache.redisAddr is required for the redis backend")
		}
	default:
		v.add("cache.backend %q must be memory or redis", cfg.Cache.Backend)
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerMinute < 1 {
			v.add("rateLimit.requestsPerMinute must be positive")
		}
		if cfg.RateLimit.ExpensiveRPS <= 0 || cfg.RateLimit.ExpensiveBurst < 1 {
			v.add("rateLimit.expensiveRps and expensiveBurst must be positive")
		}
	}

	if cfg.FFmpeg.Bin == "" {
		v.add("ffmpeg.bin must not be empty")
	}
	if cfg.Subtitles.MinCueDuration < time.Millisecond {
		v.add("subtitles.minCueDuration must be at least 1ms")
	}
	if cfg.Upstream.FailureThreshold < 1 {
		v.add("upstream.failureThreshold must be at least 1")
	}

	for name, raw := range map[string]string{
		"openSubtitles.baseUrl": cfg.OpenSubtitles.BaseURL,
		"translate.baseUrl":     cfg.Translate.BaseURL,
		"shazam.baseUrl":        cfg.Shazam.BaseURL,
	} {
		if err := validateURL(raw); err != nil {
			v.add("%s: %v", name, err)
		}
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			v.add("telemetry.exporter %q must be grpc or http", cfg.Telemetry.Exporter)
		}
	}

	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http(s)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
