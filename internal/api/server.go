// SPDX-License-Identifier: MIT

// Package api serves the cutroom REST API consumed by the browser editor.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cutroom/cutroom/internal/api/middleware"
	"github.com/cutroom/cutroom/internal/blob"
	"github.com/cutroom/cutroom/internal/captions"
	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/health"
	"github.com/cutroom/cutroom/internal/jobs"
	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/media"
	"github.com/cutroom/cutroom/internal/ratelimit"
	"github.com/cutroom/cutroom/internal/telemetry"
	"github.com/cutroom/cutroom/internal/upstream/oauth"
	"github.com/cutroom/cutroom/internal/upstream/shazam"
	"github.com/cutroom/cutroom/internal/upstream/youtube"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

// Transcoder runs ffmpeg commands.
type Transcoder interface {
	Execute(ctx context.Context, cmd media.Command) error
	Probe(ctx context.Context, input string) (float64, error)
}

// Downloads queues remote video downloads.
type Downloads interface {
	Submit(ctx context.Context, uploadID, url string) (jobs.Job, error)
	Get(ctx context.Context, id string) (jobs.Job, error)
}

// PlaylistResolver lists the videos of a remote playlist.
type PlaylistResolver interface {
	Resolve(ctx context.Context, rawURL string) (youtube.Playlist, error)
}

// SongIdentifier recognises a raw PCM sample.
type SongIdentifier interface {
	Identify(ctx context.Context, sample []byte) (shazam.Match, error)
}

// PlatformAuth performs the OAuth flows of the music platforms.
type PlatformAuth interface {
	AuthorizeURL(p library.Platform, redirectURI string) (string, string, error)
	Exchange(ctx context.Context, p library.Platform, code, redirectURI, state string) (oauth.Token, error)
	Refresh(ctx context.Context, p library.Platform, refreshToken string) (oauth.Token, error)
	Playlists(ctx context.Context, p library.Platform, accessToken string) ([]oauth.RemotePlaylist, error)
}

// Deps are the collaborators behind the handlers. Library, Blobs, Captions
// and Media are required; a nil forwarder answers 503.
type Deps struct {
	Library   *library.Store
	Blobs     *blob.Store
	Captions  *captions.Service
	Media     Transcoder
	Downloads Downloads
	Playlists PlaylistResolver
	Songs     SongIdentifier
	Platforms PlatformAuth
	Limiter   *ratelimit.Limiter
	Health    *health.Manager
}

// Server holds the API state.
type Server struct {
	cfg     config.AppConfig
	deps    Deps
	spec    *openapi3.T
	handler http.Handler
	now     func() time.Time
}

// NewServer validates the embedded API description and builds the router.
func NewServer(cfg config.AppConfig, deps Deps) (*Server, error) {
	if deps.Library == nil || deps.Blobs == nil || deps.Captions == nil || deps.Media == nil {
		return nil, fmt.Errorf("api: library, blobs, captions and media are required")
	}
	spec, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(cfg.Version)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = config.Defaults().Server.MaxUploadBytes
	}
	s := &Server{cfg: cfg, deps: deps, spec: spec, now: time.Now}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// limit applies the per-class limiter for expensive routes.
func (s *Server) limit(class string) func(http.Handler) http.Handler {
	if s.deps.Limiter == nil || !s.cfg.RateLimit.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.deps.Limiter.Middleware(class)
}

func (s *Server) routes() http.Handler {
	tracing := ""
	if s.cfg.Telemetry.Enabled {
		tracing = telemetry.ServiceName
	}
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.Server.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracing,
		EnableLogging:         true,
		EnableRateLimit:       s.cfg.RateLimit.Enabled,
		RateLimitPerMinute:    s.cfg.RateLimit.RequestsPerMinute,
		RateLimitWhitelist:    s.cfg.RateLimit.Whitelist,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/openapi.yaml", s.handleOpenAPI)

		r.Route("/uploads", func(r chi.Router) {
			r.Get("/", s.handleListUploads)
			r.Post("/", s.handleCreateUpload)
			r.Route("/{uploadId}", func(r chi.Router) {
				r.Get("/", s.handleGetUpload)
				r.Delete("/", s.handleDeleteUpload)
				r.Get("/file", s.handleUploadFile)
				r.Get("/segments", s.handleListSegments)
				r.Post("/segments", s.handleCreateSegment)
				r.Get("/subtitles", s.handleListSubtitles)
				r.Post("/subtitles", s.handleUploadSubtitle)
			})
		})

		r.Route("/segments", func(r chi.Router) {
			r.With(s.limit(ratelimit.ClassTranscode)).Post("/export", s.handleExportSegments)
			r.Post("/delete", s.handleDeleteSegments)
			r.Put("/{segmentId}", s.handleUpdateSegment)
			r.Delete("/{segmentId}", s.handleDeleteSegment)
		})

		r.Route("/subtitles", func(r chi.Router) {
			r.Post("/adjust-timing", s.handleAdjustTiming)
			r.With(s.limit(ratelimit.ClassUpstream)).Get("/search", s.handleSearchSubtitles)
			r.With(s.limit(ratelimit.ClassUpstream)).Post("/download", s.handleDownloadSubtitle)
			r.Get("/{subtitleId}", s.handleGetSubtitle)
			r.Get("/{subtitleId}/content", s.handleSubtitleContent)
			r.Delete("/{subtitleId}", s.handleDeleteSubtitle)
			r.With(s.limit(ratelimit.ClassUpstream)).Post("/{subtitleId}/translate", s.handleTranslateSubtitle)
		})

		r.Route("/media", func(r chi.Router) {
			r.Use(s.limit(ratelimit.ClassTranscode))
			r.Post("/cut", s.handleCut)
			r.Post("/merge", s.handleMerge)
			r.Post("/audio", s.handleAudio)
			r.Post("/effects", s.handleEffects)
		})

		r.Route("/videos/download", func(r chi.Router) {
			r.With(s.limit(ratelimit.ClassDownload)).Post("/", s.handleVideoDownload)
			r.Get("/{jobId}", s.handleVideoDownloadStatus)
		})

		r.With(s.limit(ratelimit.ClassTranscode)).Post("/songs/identify", s.handleIdentifySong)

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", s.handleListPlaylists)
			r.Post("/", s.handleCreatePlaylist)
			r.With(s.limit(ratelimit.ClassDownload)).Post("/import", s.handleImportPlaylist)
			r.Route("/{playlistId}", func(r chi.Router) {
				r.Get("/", s.handleGetPlaylist)
				r.Delete("/", s.handleDeletePlaylist)
				r.Get("/tracks", s.handleListTracks)
				r.Post("/tracks", s.handleAddTracks)
				r.Put("/tracks/order", s.handleReorderTracks)
			})
		})

		r.Route("/platforms", func(r chi.Router) {
			r.Get("/", s.handleListConnections)
			r.Get("/{platform}/authorize", s.handleAuthorize)
			r.With(s.limit(ratelimit.ClassUpstream)).Post("/{platform}/connect", s.handleConnect)
			r.With(s.limit(ratelimit.ClassUpstream)).Post("/{platform}/sync", s.handleSync)
			r.Delete("/{platform}", s.handleDisconnect)
		})
	})

	return r
}
