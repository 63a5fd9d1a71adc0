// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "CUTROOM_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// The result is validated before it is returned.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	resolvePaths(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes the YAML file on top of cfg. Unknown keys are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// empty file keeps the defaults
			return nil
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)

	cfg.Server.ListenAddr = l.envString("LISTEN", cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = l.envDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.MaxUploadBytes = l.envInt64("MAX_UPLOAD_BYTES", cfg.Server.MaxUploadBytes)
	cfg.Server.CORSOrigins = l.envList("CORS_ORIGINS", cfg.Server.CORSOrigins)

	cfg.Database.Path = l.envString("DB_PATH", cfg.Database.Path)
	cfg.Storage.Root = l.envString("STORAGE_ROOT", cfg.Storage.Root)

	cfg.Jobs.Backend = l.envString("JOBS_BACKEND", cfg.Jobs.Backend)
	cfg.Jobs.BadgerDir = l.envString("JOBS_BADGER_DIR", cfg.Jobs.BadgerDir)
	cfg.Jobs.Workers = l.envInt("JOBS_WORKERS", cfg.Jobs.Workers)
	cfg.Jobs.QueueSize = l.envInt("JOBS_QUEUE_SIZE", cfg.Jobs.QueueSize)
	cfg.Jobs.RetryBackoff = l.envDuration("JOBS_RETRY_BACKOFF", cfg.Jobs.RetryBackoff)

	cfg.Cache.Backend = l.envString("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.RedisAddr = l.envString("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt("REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.TTL = l.envDuration("CACHE_TTL", cfg.Cache.TTL)

	cfg.RateLimit.Enabled = l.envBool("RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = l.envInt("RATELIMIT_RPM", cfg.RateLimit.RequestsPerMinute)
	cfg.RateLimit.ExpensiveRPS = l.envFloat("RATELIMIT_EXPENSIVE_RPS", cfg.RateLimit.ExpensiveRPS)
	cfg.RateLimit.ExpensiveBurst = l.envInt("RATELIMIT_EXPENSIVE_BURST", cfg.RateLimit.ExpensiveBurst)
	cfg.RateLimit.Whitelist = l.envList("RATELIMIT_WHITELIST", cfg.RateLimit.Whitelist)

	cfg.FFmpeg.Bin = l.envString("FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = l.envString("FFPROBE_BIN", cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.Timeout = l.envDuration("FFMPEG_TIMEOUT", cfg.FFmpeg.Timeout)

	cfg.YTDLP.Bin = l.envString("YTDLP_BIN", cfg.YTDLP.Bin)
	cfg.YTDLP.Format = l.envString("YTDLP_FORMAT", cfg.YTDLP.Format)
	cfg.YTDLP.Timeout = l.envDuration("YTDLP_TIMEOUT", cfg.YTDLP.Timeout)

	cfg.Subtitles.MinCueDuration = l.envDuration("SUBTITLE_MIN_CUE", cfg.Subtitles.MinCueDuration)

	cfg.Upstream.Timeout = l.envDuration("UPSTREAM_TIMEOUT", cfg.Upstream.Timeout)
	cfg.Upstream.FailureThreshold = l.envInt("UPSTREAM_FAILURE_THRESHOLD", cfg.Upstream.FailureThreshold)
	cfg.Upstream.OpenTimeout = l.envDuration("UPSTREAM_OPEN_TIMEOUT", cfg.Upstream.OpenTimeout)

	cfg.OpenSubtitles.BaseURL = l.envString("OPENSUBTITLES_URL", cfg.OpenSubtitles.BaseURL)
	cfg.OpenSubtitles.APIKey = l.envString("OPENSUBTITLES_API_KEY", cfg.OpenSubtitles.APIKey)
	cfg.OpenSubtitles.UserAgent = l.envString("OPENSUBTITLES_USER_AGENT", cfg.OpenSubtitles.UserAgent)

	cfg.Translate.BaseURL = l.envString("TRANSLATE_URL", cfg.Translate.BaseURL)
	cfg.Translate.APIKey = l.envString("TRANSLATE_API_KEY", cfg.Translate.APIKey)

	cfg.Shazam.BaseURL = l.envString("SHAZAM_URL", cfg.Shazam.BaseURL)
	cfg.Shazam.APIKey = l.envString("RAPIDAPI_KEY", cfg.Shazam.APIKey)
	cfg.Shazam.Host = l.envString("SHAZAM_HOST", cfg.Shazam.Host)

	l.mergeProviderEnv("SPOTIFY", &cfg.Platforms.Spotify)
	l.mergeProviderEnv("YOUTUBE", &cfg.Platforms.YouTube)
	l.mergeProviderEnv("SOUNDCLOUD", &cfg.Platforms.SoundCloud)
	l.mergeProviderEnv("APPLE_MUSIC", &cfg.Platforms.AppleMusic)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("OTLP_PROTOCOL", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = l.envString("ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = l.envFloat("TRACE_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.Metrics.Enabled = l.envBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.ListenAddr = l.envString("METRICS_LISTEN", cfg.Metrics.ListenAddr)
}

func (l *Loader) mergeProviderEnv(name string, p *OAuthProvider) {
	p.ClientID = l.envString(name+"_CLIENT_ID", p.ClientID)
	p.ClientSecret = l.envString(name+"_CLIENT_SECRET", p.ClientSecret)
	p.AuthURL = l.envString(name+"_AUTH_URL", p.AuthURL)
	p.TokenURL = l.envString(name+"_TOKEN_URL", p.TokenURL)
	p.APIBaseURL = l.envString(name+"_API_URL", p.APIBaseURL)
	p.Scopes = l.envList(name+"_SCOPES", p.Scopes)
}

// resolvePaths fills storage locations that default to DataDir subdirectories.
func resolvePaths(cfg *AppConfig) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "cutroom.db")
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = filepath.Join(cfg.DataDir, "media")
	}
	if cfg.Jobs.BadgerDir == "" {
		cfg.Jobs.BadgerDir = filepath.Join(cfg.DataDir, "jobs")
	}
}
