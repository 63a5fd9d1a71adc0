// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cutroom/cutroom/internal/jobs"
	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/go-chi/chi/v5"
)

type videoDownloadRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type videoDownloadResponse struct {
	Job    jobs.Job       `json:"job"`
	Upload library.Upload `json:"upload"`
}

// checkMediaURL accepts absolute http(s) URLs only; everything else would be
// handed to yt-dlp as a local path or extractor spec.
func checkMediaURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", badRequest("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", badRequest("url must be an absolute http(s) URL")
	}
	return u.String(), nil
}

// handleVideoDownload registers a pending upload and queues its download.
func (s *Server) handleVideoDownload(w http.ResponseWriter, r *http.Request) {
	var req videoDownloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rawURL, err := checkMediaURL(req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, job, err := s.queueDownload(r.Context(), rawURL, req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, videoDownloadResponse{Job: job, Upload: u})
}

// queueDownload creates the upload row and submits the job. When the queue
// rejects the job the pool has already marked the upload failed.
func (s *Server) queueDownload(ctx context.Context, rawURL, title string) (library.Upload, jobs.Job, error) {
	if s.deps.Downloads == nil {
		return library.Upload{}, jobs.Job{}, fmt.Errorf("video download: %w", upstream.ErrNotConfigured)
	}
	if title == "" {
		title = rawURL
	}
	u, err := s.deps.Library.CreateUpload(ctx, library.Upload{
		Title:          title,
		SourceURL:      rawURL,
		Kind:           library.KindYouTube,
		DownloadStatus: library.StatusPending,
	})
	if err != nil {
		return library.Upload{}, jobs.Job{}, err
	}
	job, err := s.deps.Downloads.Submit(ctx, u.ID, rawURL)
	if err != nil {
		return library.Upload{}, jobs.Job{}, err
	}
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().
		Str(log.FieldJobID, job.ID).
		Str(log.FieldUploadID, u.ID).
		Msg("download queued")
	return u, job, nil
}

func (s *Server) handleVideoDownloadStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Downloads == nil {
		writeError(w, r, fmt.Errorf("video download: %w", upstream.ErrNotConfigured))
		return
	}
	job, err := s.deps.Downloads.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
