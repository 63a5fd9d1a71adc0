// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/cutroom/cutroom/internal/upstream/oauth"
	"github.com/go-chi/chi/v5"
)

// platformParam resolves the {platform} URL segment.
func platformParam(r *http.Request) (library.Platform, error) {
	raw := chi.URLParam(r, "platform")
	p, ok := library.ParsePlatform(raw)
	if !ok {
		return "", fmt.Errorf("%w: %s", oauth.ErrUnknownPlatform, raw)
	}
	return p, nil
}

func (s *Server) platformAuth() (PlatformAuth, error) {
	if s.deps.Platforms == nil {
		return nil, fmt.Errorf("platforms: %w", upstream.ErrNotConfigured)
	}
	return s.deps.Platforms, nil
}

type platformStatus struct {
	Platform   library.Platform    `json:"platform"`
	Connected  bool                `json:"connected"`
	Connection *library.Connection `json:"connection,omitempty"`
}

// handleListConnections reports every supported platform, connected or not.
func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.deps.Library.ListConnections(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	byPlatform := make(map[library.Platform]library.Connection, len(conns))
	for _, c := range conns {
		byPlatform[c.Platform] = c
	}
	out := make([]platformStatus, 0, len(library.Platforms))
	for _, p := range library.Platforms {
		st := platformStatus{Platform: p}
		if c, ok := byPlatform[p]; ok {
			st.Connected = true
			st.Connection = &c
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}

type authorizeResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	p, err := platformParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	auth, err := s.platformAuth()
	if err != nil {
		writeError(w, r, err)
		return
	}
	redirectURI := strings.TrimSpace(r.URL.Query().Get("redirectUri"))
	if redirectURI == "" {
		writeError(w, r, badRequest("redirectUri is required"))
		return
	}
	u, state, err := auth.AuthorizeURL(p, redirectURI)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{URL: u, State: state})
}

type connectRequest struct {
	Code        string `json:"code,omitempty"`
	RedirectURI string `json:"redirectUri,omitempty"`
	State       string `json:"state,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	AccountName string `json:"accountName,omitempty"`
}

// handleConnect stores a connection. Apple Music takes the user token as
// issued by MusicKit; every other platform exchanges an authorization code.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := platformParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req connectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var conn library.Connection
	if p == library.PlatformAppleMusic {
		if strings.TrimSpace(req.AccessToken) == "" {
			writeError(w, r, badRequest("accessToken is required for %s", p))
			return
		}
		conn = library.Connection{Platform: p, AccessToken: req.AccessToken}
	} else {
		if strings.TrimSpace(req.Code) == "" {
			writeError(w, r, badRequest("code is required"))
			return
		}
		auth, err := s.platformAuth()
		if err != nil {
			writeError(w, r, err)
			return
		}
		tok, err := auth.Exchange(ctx, p, req.Code, req.RedirectURI, req.State)
		if err != nil {
			writeError(w, r, upstreamError(err))
			return
		}
		conn = tok.Connection(p, s.now())
	}
	conn.AccountName = strings.TrimSpace(req.AccountName)

	saved, err := s.deps.Library.UpsertConnection(ctx, conn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().Str(log.FieldPlatform, string(p)).Msg("platform connected")
	writeJSON(w, http.StatusOK, saved)
}

type syncResponse struct {
	Playlists []library.Playlist `json:"playlists"`
	Count     int                `json:"count"`
}

// handleSync mirrors the account's playlists into the library, refreshing
// an expired token first when a refresh token is on file.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := platformParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	auth, err := s.platformAuth()
	if err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := s.deps.Library.GetConnection(ctx, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if conn, err = s.freshConnection(ctx, auth, conn); err != nil {
		writeError(w, r, upstreamError(err))
		return
	}

	remote, err := auth.Playlists(ctx, p, conn.AccessToken)
	if err != nil {
		writeError(w, r, upstreamError(err))
		return
	}
	resp := syncResponse{Playlists: make([]library.Playlist, 0, len(remote))}
	for _, rp := range remote {
		pl, err := s.deps.Library.CreatePlaylist(ctx, library.Playlist{
			Name:        rp.Name,
			Description: rp.Description,
			Source:      library.PlaylistSource(p),
			ExternalID:  rp.ExternalID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Playlists = append(resp.Playlists, pl)
	}
	resp.Count = len(resp.Playlists)

	if err := s.deps.Library.MarkSynced(ctx, p); err != nil {
		writeError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().
		Str(log.FieldPlatform, string(p)).
		Int("playlists", resp.Count).
		Msg("platform synced")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) freshConnection(ctx context.Context, auth PlatformAuth, conn library.Connection) (library.Connection, error) {
	if !conn.Expired(s.now()) {
		return conn, nil
	}
	if conn.RefreshToken == "" {
		return conn, badRequest("access token expired and no refresh token is stored; reconnect %s", conn.Platform)
	}
	tok, err := auth.Refresh(ctx, conn.Platform, conn.RefreshToken)
	if err != nil {
		return conn, fmt.Errorf("refresh token: %w", err)
	}
	refreshed := tok.Connection(conn.Platform, s.now())
	refreshed.AccountName = conn.AccountName
	refreshed.ConnectedAt = conn.ConnectedAt
	if refreshed.Scope == "" {
		refreshed.Scope = conn.Scope
	}
	return s.deps.Library.UpsertConnection(ctx, refreshed)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	p, err := platformParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Library.DeleteConnection(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().Str(log.FieldPlatform, string(p)).Msg("platform disconnected")
	w.WriteHeader(http.StatusNoContent)
}
