// SPDX-License-Identifier: MIT

package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, h http.Handler) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	providers := map[library.Platform]Provider{
		library.PlatformSpotify: {
			ClientID: "cid", ClientSecret: "csecret",
			AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token",
			APIBaseURL: srv.URL + "/spotify/v1",
			Scopes:     []string{"playlist-read-private", "user-library-read"},
		},
		library.PlatformYouTube: {
			ClientID: "gid", ClientSecret: "gsecret",
			AuthURL: srv.URL + "/o/oauth2/v2/auth", TokenURL: srv.URL + "/token",
			APIBaseURL: srv.URL + "/youtube/v3",
		},
		library.PlatformSoundCloud: {
			ClientID: "scid", ClientSecret: "scsecret",
			AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token",
			APIBaseURL: srv.URL + "/sc",
		},
		library.PlatformAppleMusic: {
			ClientSecret: "devtoken",
			APIBaseURL:   srv.URL + "/v1",
		},
	}
	return NewService(providers, upstream.Options{HTTPClient: srv.Client()}), srv
}

func TestAuthorizeURL(t *testing.T) {
	s, srv := newService(t, http.NotFoundHandler())

	raw, state, err := s.AuthorizeURL(library.PlatformSpotify, "http://localhost:5173/callback")
	require.NoError(t, err)
	require.NotEmpty(t, state)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, "playlist-read-private user-library-read", q.Get("scope"))
	assert.Empty(t, q.Get("access_type"))

	raw, _, err = s.AuthorizeURL(library.PlatformYouTube, "http://localhost/cb")
	require.NoError(t, err)
	u, _ = url.Parse(raw)
	assert.Equal(t, "offline", u.Query().Get("access_type"))

	_, _, err = s.AuthorizeURL(library.PlatformAppleMusic, "http://localhost/cb")
	assert.ErrorIs(t, err, ErrNoCodeFlow)
	_, _, err = s.AuthorizeURL(library.Platform("myspace"), "http://localhost/cb")
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		assert.Equal(t, "csecret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "http://localhost/cb", r.PostForm.Get("redirect_uri"))
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","scope":"playlist-read-private","expires_in":3600}`))
	})
	s, _ := newService(t, mux)

	_, state, err := s.AuthorizeURL(library.PlatformSpotify, "http://localhost/cb")
	require.NoError(t, err)

	tok, err := s.Exchange(context.Background(), library.PlatformSpotify, "the-code", "http://localhost/cb", state)
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	conn := tok.Connection(library.PlatformSpotify, now)
	require.NotNil(t, conn.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *conn.ExpiresAt)
	assert.Equal(t, "rt", conn.RefreshToken)

	// A state nonce is single use.
	_, err = s.Exchange(context.Background(), library.PlatformSpotify, "the-code", "http://localhost/cb", state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExchange_StateBoundToPlatformAndExpiry(t *testing.T) {
	s, _ := newService(t, http.NotFoundHandler())
	now := time.Now()
	s.now = func() time.Time { return now }

	_, state, err := s.AuthorizeURL(library.PlatformSpotify, "http://localhost/cb")
	require.NoError(t, err)
	_, err = s.Exchange(context.Background(), library.PlatformSoundCloud, "c", "http://localhost/cb", state)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, state, err = s.AuthorizeURL(library.PlatformSpotify, "http://localhost/cb")
	require.NoError(t, err)
	now = now.Add(stateTTL + time.Second)
	_, err = s.Exchange(context.Background(), library.PlatformSpotify, "c", "http://localhost/cb", state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRefresh_KeepsRefreshToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-rt", r.PostForm.Get("refresh_token"))
		_, _ = w.Write([]byte(`{"access_token":"new-at","expires_in":60}`))
	})
	s, _ := newService(t, mux)

	tok, err := s.Refresh(context.Background(), library.PlatformYouTube, "old-rt")
	require.NoError(t, err)
	assert.Equal(t, "new-at", tok.AccessToken)
	assert.Equal(t, "old-rt", tok.RefreshToken)
}

func TestPlaylists(t *testing.T) {
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/spotify/v1/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		if r.URL.Query().Get("offset") == "" {
			_, _ = w.Write([]byte(`{"items":[{"id":"sp1","name":"Road trip","description":"d","tracks":{"total":12}}],"next":"` + base + `/spotify/v1/me/playlists?offset=50"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"sp2","name":"Focus","tracks":{"total":3}}],"next":null}`))
	})
	mux.HandleFunc("/youtube/v3/playlists", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("mine"))
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"items":[{"id":"PL1","snippet":{"title":"Mixes"},"contentDetails":{"itemCount":7}}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"PL2","snippet":{"title":"Live"},"contentDetails":{"itemCount":1}}]}`))
	})
	mux.HandleFunc("/sc/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OAuth at", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":123,"title":"Sets","track_count":4}]`))
	})
	mux.HandleFunc("/v1/me/library/playlists", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer devtoken", r.Header.Get("Authorization"))
		assert.Equal(t, "at", r.Header.Get("Music-User-Token"))
		if r.URL.Query().Get("offset") == "" {
			_, _ = w.Write([]byte(`{"data":[{"id":"p.1","attributes":{"name":"Chill","description":{"standard":"calm"}}}],"next":"/v1/me/library/playlists?offset=100"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"p.2","attributes":{"name":"Gym"}}]}`))
	})
	s, srv := newService(t, mux)
	base = srv.URL

	tests := []struct {
		platform library.Platform
		want     []RemotePlaylist
	}{
		{library.PlatformSpotify, []RemotePlaylist{
			{ExternalID: "sp1", Name: "Road trip", Description: "d", TrackCount: 12},
			{ExternalID: "sp2", Name: "Focus", TrackCount: 3},
		}},
		{library.PlatformYouTube, []RemotePlaylist{
			{ExternalID: "PL1", Name: "Mixes", TrackCount: 7},
			{ExternalID: "PL2", Name: "Live", TrackCount: 1},
		}},
		{library.PlatformSoundCloud, []RemotePlaylist{
			{ExternalID: "123", Name: "Sets", TrackCount: 4},
		}},
		{library.PlatformAppleMusic, []RemotePlaylist{
			{ExternalID: "p.1", Name: "Chill", Description: "calm"},
			{ExternalID: "p.2", Name: "Gym"},
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			got, err := s.Playlists(context.Background(), tt.platform, "at")
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("playlists mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
