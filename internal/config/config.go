// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads cutroom configuration from defaults, an optional YAML
// file and CUTROOM_* environment variables, in that order of precedence.
package config

import "time"

// AppConfig is the fully resolved service configuration.
type AppConfig struct {
	Version  string `yaml:"-"`
	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`

	Server        ServerSettings  `yaml:"server"`
	Database      DatabaseConfig  `yaml:"database"`
	Storage       StorageConfig   `yaml:"storage"`
	Jobs          JobsConfig      `yaml:"jobs"`
	Cache         CacheConfig     `yaml:"cache"`
	RateLimit     RateLimitConfig `yaml:"rateLimit"`
	FFmpeg        FFmpegConfig    `yaml:"ffmpeg"`
	YTDLP         YTDLPConfig     `yaml:"ytdlp"`
	Subtitles     SubtitleConfig  `yaml:"subtitles"`
	Upstream      UpstreamConfig  `yaml:"upstream"`
	OpenSubtitles OpenSubtitles   `yaml:"openSubtitles"`
	Translate     TranslateConfig `yaml:"translate"`
	Shazam        ShazamConfig    `yaml:"shazam"`
	Platforms     PlatformsConfig `yaml:"platforms"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Metrics       MetricsConfig   `yaml:"metrics"`
}

// ServerSettings is the file/env view of the HTTP server.
type ServerSettings struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxHeaderBytes  int           `yaml:"maxHeaderBytes"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig points at the directory used for uploaded media, subtitles and renders.
type StorageConfig struct {
	Root string `yaml:"root"`
}

// JobsConfig controls the background download worker.
type JobsConfig struct {
	// Backend is "memory" or "badger".
	Backend      string        `yaml:"backend"`
	BadgerDir    string        `yaml:"badgerDir"`
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queueSize"`
	RetryBackoff time.Duration `yaml:"retryBackoff"`
}

// CacheConfig selects the upstream response cache.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb"`
	TTL           time.Duration `yaml:"ttl"`
}

type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// RequestsPerMinute is the global per-client API budget.
	RequestsPerMinute int `yaml:"requestsPerMinute"`

	// ExpensiveRPS and ExpensiveBurst bound transcoding and upstream calls per client IP.
	ExpensiveRPS   float64  `yaml:"expensiveRps"`
	ExpensiveBurst int      `yaml:"expensiveBurst"`
	Whitelist      []string `yaml:"whitelist"`
}

type FFmpegConfig struct {
	Bin        string        `yaml:"bin"`
	FFprobeBin string        `yaml:"ffprobeBin"`
	Timeout    time.Duration `yaml:"timeout"`
}

type YTDLPConfig struct {
	Bin     string        `yaml:"bin"`
	Format  string        `yaml:"format"`
	Timeout time.Duration `yaml:"timeout"`
}

// SubtitleConfig holds the timing policy applied by the SRT adjuster.
type SubtitleConfig struct {
	MinCueDuration time.Duration `yaml:"minCueDuration"`
}

// UpstreamConfig is shared by every outbound forwarder.
type UpstreamConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failureThreshold"`
	OpenTimeout      time.Duration `yaml:"openTimeout"`
}

type OpenSubtitles struct {
	BaseURL   string `yaml:"baseUrl"`
	APIKey    string `yaml:"apiKey"`
	UserAgent string `yaml:"userAgent"`
}

type TranslateConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
}

type ShazamConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Host    string `yaml:"host"`
}

// OAuthProvider describes one OAuth2 authorization-code provider.
type OAuthProvider struct {
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret"`
	AuthURL      string   `yaml:"authUrl"`
	TokenURL     string   `yaml:"tokenUrl"`
	APIBaseURL   string   `yaml:"apiBaseUrl"`
	Scopes       []string `yaml:"scopes"`
}

type PlatformsConfig struct {
	Spotify    OAuthProvider `yaml:"spotify"`
	YouTube    OAuthProvider `yaml:"youtube"`
	SoundCloud OAuthProvider `yaml:"soundcloud"`
	AppleMusic OAuthProvider `yaml:"appleMusic"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr"`
}
