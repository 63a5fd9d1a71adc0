// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults returns the configuration used when neither file nor environment
// sets a value.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:  "data",
		LogLevel: "info",
		Server: ServerSettings{
			ListenAddr:      ":8088",
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    0,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxUploadBytes:  2 << 30,
			CORSOrigins:     []string{"*"},
		},
		Jobs: JobsConfig{
			Backend:      "memory",
			Workers:      2,
			QueueSize:    64,
			RetryBackoff: 5 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
			ExpensiveRPS:      1,
			ExpensiveBurst:    4,
		},
		FFmpeg: FFmpegConfig{
			Bin:        "ffmpeg",
			FFprobeBin: "ffprobe",
			Timeout:    30 * time.Minute,
		},
		YTDLP: YTDLPConfig{
			Bin:     "yt-dlp",
			Format:  "bv*+ba/b",
			Timeout: time.Hour,
		},
		Subtitles: SubtitleConfig{
			MinCueDuration: time.Second,
		},
		Upstream: UpstreamConfig{
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		},
		OpenSubtitles: OpenSubtitles{
			BaseURL:   "https://api.opensubtitles.com/api/v1",
			UserAgent: "cutroom v1",
		},
		Translate: TranslateConfig{
			BaseURL: "https://libretranslate.com",
		},
		Shazam: ShazamConfig{
			BaseURL: "https://shazam.p.rapidapi.com",
			Host:    "shazam.p.rapidapi.com",
		},
		Platforms: PlatformsConfig{
			Spotify: OAuthProvider{
				AuthURL:    "https://accounts.spotify.com/authorize",
				TokenURL:   "https://accounts.spotify.com/api/token",
				APIBaseURL: "https://api.spotify.com/v1",
				Scopes:     []string{"playlist-read-private", "user-library-read"},
			},
			YouTube: OAuthProvider{
				AuthURL:    "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL:   "https://oauth2.googleapis.com/token",
				APIBaseURL: "https://www.googleapis.com/youtube/v3",
				Scopes:     []string{"https://www.googleapis.com/auth/youtube.readonly"},
			},
			SoundCloud: OAuthProvider{
				AuthURL:    "https://secure.soundcloud.com/authorize",
				TokenURL:   "https://secure.soundcloud.com/oauth/token",
				APIBaseURL: "https://api.soundcloud.com",
			},
			AppleMusic: OAuthProvider{
				APIBaseURL: "https://api.music.apple.com/v1",
			},
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
	}
}
