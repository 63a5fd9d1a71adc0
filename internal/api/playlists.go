// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/go-chi/chi/v5"
)

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	pls, err := s.deps.Library.ListPlaylists(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pls)
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, badRequest("name is required"))
		return
	}
	pl, err := s.deps.Library.CreatePlaylist(r.Context(), library.Playlist{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Source:      library.SourceLocal,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := s.deps.Library.GetPlaylist(r.Context(), chi.URLParam(r, "playlistId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.DeletePlaylist(r.Context(), chi.URLParam(r, "playlistId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListTracks returns the tracks in order, first copying the status of
// any linked upload onto its track.
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "playlistId")
	if _, err := s.deps.Library.GetPlaylist(ctx, playlistID); err != nil {
		writeError(w, r, err)
		return
	}
	tracks, err := s.deps.Library.ListTracks(ctx, playlistID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i, t := range tracks {
		if t.UploadID == "" || t.DownloadStatus.IsFinished() {
			continue
		}
		u, err := s.deps.Library.GetUpload(ctx, t.UploadID)
		if err != nil {
			if errors.Is(err, library.ErrNotFound) {
				continue
			}
			writeError(w, r, err)
			return
		}
		if u.DownloadStatus == t.DownloadStatus {
			continue
		}
		if err := s.deps.Library.UpdateTrackStatus(ctx, t.ID, u.DownloadStatus, ""); err != nil {
			writeError(w, r, err)
			return
		}
		tracks[i].DownloadStatus = u.DownloadStatus
	}
	writeJSON(w, http.StatusOK, tracks)
}

type trackRequest struct {
	Title           string  `json:"title"`
	Artist          string  `json:"artist,omitempty"`
	UploadID        string  `json:"uploadId,omitempty"`
	SourceURL       string  `json:"sourceUrl,omitempty"`
	ExternalID      string  `json:"externalId,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

type addTracksRequest struct {
	Tracks []trackRequest `json:"tracks"`
}

func (s *Server) handleAddTracks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addTracksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Tracks) == 0 {
		writeError(w, r, badRequest("tracks must not be empty"))
		return
	}

	tracks := make([]library.Track, 0, len(req.Tracks))
	for i, t := range req.Tracks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			writeError(w, r, badRequest("tracks[%d]: title is required", i))
			return
		}
		track := library.Track{
			Title:           title,
			Artist:          strings.TrimSpace(t.Artist),
			SourceURL:       t.SourceURL,
			ExternalID:      t.ExternalID,
			DurationSeconds: t.DurationSeconds,
		}
		if t.UploadID != "" {
			u, err := s.deps.Library.GetUpload(ctx, t.UploadID)
			if err != nil {
				writeError(w, r, fmt.Errorf("tracks[%d]: %w", i, err))
				return
			}
			track.UploadID = u.ID
			track.DownloadStatus = u.DownloadStatus
			if track.DurationSeconds == 0 {
				track.DurationSeconds = u.DurationSeconds
			}
		}
		tracks = append(tracks, track)
	}

	added, err := s.deps.Library.AddTracks(ctx, chi.URLParam(r, "playlistId"), tracks)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

type reorderRequest struct {
	TrackIDs []string `json:"trackIds"`
}

func (s *Server) handleReorderTracks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := chi.URLParam(r, "playlistId")
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.deps.Library.GetPlaylist(ctx, playlistID); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Library.ReorderTracks(ctx, playlistID, req.TrackIDs); err != nil {
		// An id from another playlist matches no row.
		if errors.Is(err, library.ErrNotFound) {
			err = fmt.Errorf("%w: %v", library.ErrInvalidOrder, err)
		}
		writeError(w, r, err)
		return
	}
	tracks, err := s.deps.Library.ListTracks(ctx, playlistID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

type importRequest struct {
	URL      string `json:"url"`
	Download bool   `json:"download,omitempty"`
}

type importResponse struct {
	Playlist library.Playlist `json:"playlist"`
	Added    []library.Track  `json:"added"`
	Skipped  int              `json:"skipped"`
}

// handleImportPlaylist mirrors a YouTube playlist. Re-importing the same
// playlist only appends videos that are not yet tracked. With download set,
// every new track gets a queued download linked to it.
func (s *Server) handleImportPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.deps.Playlists == nil {
		writeError(w, r, fmt.Errorf("playlist import: %w", upstream.ErrNotConfigured))
		return
	}
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rawURL, err := checkMediaURL(req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Download && s.deps.Downloads == nil {
		writeError(w, r, fmt.Errorf("video download: %w", upstream.ErrNotConfigured))
		return
	}

	remote, err := s.deps.Playlists.Resolve(ctx, rawURL)
	if err != nil {
		writeError(w, r, upstreamError(err))
		return
	}

	pl, err := s.deps.Library.CreatePlaylist(ctx, library.Playlist{
		Name:       remote.Title,
		Source:     library.SourceYouTube,
		ExternalID: remote.ID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	existing, err := s.deps.Library.ListTracks(ctx, pl.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	known := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		known[t.ExternalID] = struct{}{}
	}

	var fresh []library.Track
	for _, v := range remote.Videos {
		if _, ok := known[v.ID]; ok {
			continue
		}
		known[v.ID] = struct{}{}
		fresh = append(fresh, library.Track{Title: v.Title, ExternalID: v.ID, SourceURL: v.URL})
	}
	resp := importResponse{Added: []library.Track{}, Skipped: len(remote.Videos) - len(fresh)}
	if len(fresh) > 0 {
		if resp.Added, err = s.deps.Library.AddTracks(ctx, pl.ID, fresh); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if req.Download {
		for i, t := range resp.Added {
			u, _, err := s.queueDownload(ctx, t.SourceURL, t.Title)
			if err != nil {
				// Remaining tracks stay pending without an upload.
				logger := log.WithComponentFromContext(ctx, "api")
				logger.Warn().Err(err).
					Str(log.FieldPlaylistID, pl.ID).Msg("queue track download")
				break
			}
			if err := s.deps.Library.UpdateTrackStatus(ctx, t.ID, library.StatusPending, u.ID); err != nil {
				writeError(w, r, err)
				return
			}
			resp.Added[i].UploadID = u.ID
		}
	}

	if pl, err = s.deps.Library.GetPlaylist(ctx, pl.ID); err != nil {
		writeError(w, r, err)
		return
	}
	resp.Playlist = pl
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().
		Str(log.FieldPlaylistID, pl.ID).
		Int("added", len(resp.Added)).
		Int("skipped", resp.Skipped).
		Msg("playlist imported")
	writeJSON(w, http.StatusCreated, resp)
}
