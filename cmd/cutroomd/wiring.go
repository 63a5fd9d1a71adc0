// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cutroom/cutroom/internal/api"
	"github.com/cutroom/cutroom/internal/blob"
	"github.com/cutroom/cutroom/internal/cache"
	"github.com/cutroom/cutroom/internal/captions"
	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/daemon"
	"github.com/cutroom/cutroom/internal/health"
	"github.com/cutroom/cutroom/internal/jobs"
	"github.com/cutroom/cutroom/internal/library"
	xglog "github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/media"
	"github.com/cutroom/cutroom/internal/ratelimit"
	"github.com/cutroom/cutroom/internal/resilience"
	"github.com/cutroom/cutroom/internal/subtitle"
	"github.com/cutroom/cutroom/internal/telemetry"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/cutroom/cutroom/internal/upstream/oauth"
	"github.com/cutroom/cutroom/internal/upstream/opensubtitles"
	"github.com/cutroom/cutroom/internal/upstream/shazam"
	"github.com/cutroom/cutroom/internal/upstream/translate"
	"github.com/cutroom/cutroom/internal/upstream/youtube"
)

// processGrace is how long a cancelled ffmpeg or yt-dlp process group gets
// between SIGTERM and SIGKILL.
const processGrace = 5 * time.Second

type shutdownHook struct {
	name string
	fn   daemon.ShutdownHook
}

// services is the fully wired application graph for one serve run.
type services struct {
	api            *api.Server
	pool           *jobs.Pool
	metricsHandler http.Handler
	hooks          []shutdownHook

	// disabled lists upstreams left unconfigured.
	disabled []string
	closers  []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

func (s *services) onClose(name string, fn func() error) {
	s.closers = append(s.closers, namedCloser{name: name, fn: fn})
}

// close releases stores in reverse order of creation.
func (s *services) close(logger zerolog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(); err != nil {
			logger.Warn().Err(err).Str("resource", c.name).Msg("close failed")
		}
	}
	s.closers = nil
}

// buildRuntime opens every store and client named by cfg. On error the
// resources opened so far are released.
func buildRuntime(ctx context.Context, cfg config.AppConfig) (_ *services, err error) {
	logger := xglog.WithComponent("wiring")
	s := &services{}
	defer func() {
		if err != nil {
			s.close(logger)
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.FromConfig(
		cfg.Telemetry.Enabled,
		cfg.Telemetry.Exporter,
		cfg.Telemetry.Endpoint,
		cfg.Telemetry.Environment,
		cfg.Telemetry.SamplingRate,
		cfg.Version,
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	s.hooks = append(s.hooks, shutdownHook{name: "telemetry", fn: tp.Shutdown})

	lib, err := library.NewStore(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	s.onClose("library", lib.Close)

	blobs, err := blob.New(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	respCache, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	s.onClose("cache", respCache.Close)

	upOpts := upstream.Options{
		Timeout:          cfg.Upstream.Timeout,
		FailureThreshold: cfg.Upstream.FailureThreshold,
		OpenTimeout:      cfg.Upstream.OpenTimeout,
	}
	var breakers []*resilience.CircuitBreaker

	var captionOpts []captions.Option
	if cfg.OpenSubtitles.APIKey != "" {
		c := opensubtitles.New(opensubtitles.Config{
			BaseURL:   cfg.OpenSubtitles.BaseURL,
			APIKey:    cfg.OpenSubtitles.APIKey,
			UserAgent: cfg.OpenSubtitles.UserAgent,
			CacheTTL:  cfg.Cache.TTL,
		}, upOpts, respCache)
		captionOpts = append(captionOpts, captions.WithSearcher(c))
		breakers = append(breakers, c.Caller().Breaker())
	} else {
		s.disabled = append(s.disabled, "opensubtitles")
	}
	if cfg.Translate.BaseURL != "" {
		c := translate.New(translate.Config{BaseURL: cfg.Translate.BaseURL, APIKey: cfg.Translate.APIKey}, upOpts)
		captionOpts = append(captionOpts, captions.WithTranslator(c))
		breakers = append(breakers, c.Caller().Breaker())
	} else {
		s.disabled = append(s.disabled, "translate")
	}
	policy := subtitle.DefaultPolicy()
	if cfg.Subtitles.MinCueDuration > 0 {
		policy.MinCueDuration = cfg.Subtitles.MinCueDuration
	}
	capSvc := captions.NewService(lib, blobs, policy, captionOpts...)

	var songs api.SongIdentifier
	if cfg.Shazam.APIKey != "" {
		c := shazam.New(shazam.Config{
			BaseURL:  cfg.Shazam.BaseURL,
			APIKey:   cfg.Shazam.APIKey,
			Host:     cfg.Shazam.Host,
			CacheTTL: cfg.Cache.TTL,
		}, upOpts, respCache)
		songs = c
		breakers = append(breakers, c.Caller().Breaker())
	} else {
		s.disabled = append(s.disabled, "shazam")
	}

	platforms := oauth.NewService(oauthProviders(cfg.Platforms), upOpts)
	for _, c := range platforms.Callers() {
		breakers = append(breakers, c.Breaker())
	}

	runner := media.ExecRunner{Grace: processGrace}
	transcoder := media.NewTranscoder(media.Config{
		FFmpegBin:  cfg.FFmpeg.Bin,
		FFprobeBin: cfg.FFmpeg.FFprobeBin,
		Timeout:    cfg.FFmpeg.Timeout,
	}, runner)

	jobStore, err := jobs.Open(cfg.Jobs.Backend, cfg.Jobs.BadgerDir)
	if err != nil {
		return nil, fmt.Errorf("job store: %w", err)
	}
	s.onClose("jobs", jobStore.Close)
	downloader := jobs.NewYTDLP(cfg.YTDLP.Bin, cfg.YTDLP.Format, cfg.YTDLP.Timeout, runner)
	s.pool = jobs.NewPool(jobStore, downloader, jobs.NewUploadSink(lib, blobs), blobs, jobs.Config{
		Workers:      cfg.Jobs.Workers,
		QueueSize:    cfg.Jobs.QueueSize,
		RetryBackoff: cfg.Jobs.RetryBackoff,
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("database", lib.Ping))
	hm.RegisterChecker(health.NewWritableChecker("storage", blobs.CheckWritable))
	ffmpegBin, ffprobeBin := transcoder.Binaries()
	hm.RegisterChecker(health.NewBinaryChecker([]string{ffmpegBin, ffprobeBin}, []string{downloader.Bin}))
	hm.RegisterChecker(health.NewBreakerChecker(breakers...))
	hm.RegisterChecker(health.NewQueueChecker(s.pool.QueueDepth, cfg.Jobs.QueueSize))
	if rc, ok := respCache.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewOptionalPingChecker("redis", rc.HealthCheck))
	}

	s.api, err = api.NewServer(cfg, api.Deps{
		Library:   lib,
		Blobs:     blobs,
		Captions:  capSvc,
		Media:     transcoder,
		Downloads: s.pool,
		Playlists: youtube.NewLister(cfg.YTDLP.Timeout),
		Songs:     songs,
		Platforms: platforms,
		Limiter:   ratelimit.New(limiterConfig(cfg.RateLimit)),
		Health:    hm,
	})
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	s.metricsHandler = promhttp.Handler()
	return s, nil
}

func openCache(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (cache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, nil
	case "", "memory":
		return cache.NewMemoryCache(time.Minute), nil
	default:
		return nil, errors.New("unknown cache backend: " + cfg.Backend)
	}
}

func oauthProviders(cfg config.PlatformsConfig) map[library.Platform]oauth.Provider {
	conv := func(p config.OAuthProvider) oauth.Provider {
		return oauth.Provider{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			AuthURL:      p.AuthURL,
			TokenURL:     p.TokenURL,
			APIBaseURL:   p.APIBaseURL,
			Scopes:       p.Scopes,
		}
	}
	return map[library.Platform]oauth.Provider{
		library.PlatformSpotify:    conv(cfg.Spotify),
		library.PlatformYouTube:    conv(cfg.YouTube),
		library.PlatformSoundCloud: conv(cfg.SoundCloud),
		library.PlatformAppleMusic: conv(cfg.AppleMusic),
	}
}

// limiterConfig maps the per-client budget onto every expensive class while
// keeping the process-wide class ceilings.
func limiterConfig(cfg config.RateLimitConfig) ratelimit.Config {
	out := ratelimit.DefaultConfig()
	if cfg.ExpensiveRPS > 0 {
		out.PerIPRate = rate.Limit(cfg.ExpensiveRPS)
	}
	if cfg.ExpensiveBurst > 0 {
		out.PerIPBurst = cfg.ExpensiveBurst
	}
	out.Whitelist = cfg.Whitelist
	return out
}
