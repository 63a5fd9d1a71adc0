// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/upstream/oauth"
)

func platformEnv(t *testing.T, auth *fakeAuth) *testEnv {
	return newTestEnv(t, func(d *Deps) { d.Platforms = auth })
}

func TestPlatforms_ListShowsEveryPlatform(t *testing.T) {
	env := platformEnv(t, &fakeAuth{})
	_, err := env.lib.UpsertConnection(context.Background(), library.Connection{
		Platform:    library.PlatformSpotify,
		AccessToken: "secret",
		AccountName: "dj",
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/platforms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	got := decode[[]platformStatus](t, w)
	require.Len(t, got, len(library.Platforms))
	for _, st := range got {
		if st.Platform == library.PlatformSpotify {
			assert.True(t, st.Connected)
			require.NotNil(t, st.Connection)
			assert.Equal(t, "dj", st.Connection.AccountName)
		} else {
			assert.False(t, st.Connected)
			assert.Nil(t, st.Connection)
		}
	}
}

func TestPlatforms_Authorize(t *testing.T) {
	env := platformEnv(t, &fakeAuth{})

	w := env.do(t, http.MethodGet, "/api/platforms/spotify/authorize?redirectUri=http://localhost:5173/cb", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[authorizeResponse](t, w)
	assert.Equal(t, "state-1", resp.State)
	assert.Contains(t, resp.URL, "https://auth.example/spotify")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/platforms/spotify/authorize", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodGet, "/api/platforms/apple_music/authorize?redirectUri=x", nil).Code)
	assert.Equal(t, http.StatusNotFound,
		env.do(t, http.MethodGet, "/api/platforms/myspace/authorize?redirectUri=x", nil).Code)
}

func TestPlatforms_ConnectWithCode(t *testing.T) {
	auth := &fakeAuth{token: oauth.Token{AccessToken: "at", RefreshToken: "rt", Scope: "playlist-read-private", ExpiresIn: 3600}}
	env := platformEnv(t, auth)

	w := env.do(t, http.MethodPost, "/api/platforms/spotify/connect", map[string]any{
		"code": "abc", "redirectUri": "http://localhost/cb", "state": "state-1", "accountName": "dj",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	conn := decode[library.Connection](t, w)
	assert.Equal(t, library.PlatformSpotify, conn.Platform)
	assert.Equal(t, "dj", conn.AccountName)
	require.NotNil(t, conn.ExpiresAt)
	assert.Equal(t, []string{"abc"}, auth.exchanged)

	stored, err := env.lib.GetConnection(context.Background(), library.PlatformSpotify)
	require.NoError(t, err)
	assert.Equal(t, "at", stored.AccessToken)
	assert.Equal(t, "rt", stored.RefreshToken)

	w = env.do(t, http.MethodPost, "/api/platforms/spotify/connect", map[string]any{"code": "abc", "state": "forged"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/platforms/spotify/connect", map[string]any{"state": "state-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlatforms_ConnectAppleMusicToken(t *testing.T) {
	auth := &fakeAuth{}
	env := platformEnv(t, auth)

	w := env.do(t, http.MethodPost, "/api/platforms/apple_music/connect", map[string]any{"accessToken": "music-user-token"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, auth.exchanged)

	stored, err := env.lib.GetConnection(context.Background(), library.PlatformAppleMusic)
	require.NoError(t, err)
	assert.Equal(t, "music-user-token", stored.AccessToken)
	assert.Nil(t, stored.ExpiresAt)

	w = env.do(t, http.MethodPost, "/api/platforms/apple_music/connect", map[string]any{"code": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlatforms_SyncUpsertsPlaylists(t *testing.T) {
	auth := &fakeAuth{playlists: []oauth.RemotePlaylist{
		{ExternalID: "p1", Name: "Chill", TrackCount: 10},
		{ExternalID: "p2", Name: "Run", Description: "fast"},
	}}
	env := platformEnv(t, auth)
	ctx := context.Background()
	_, err := env.lib.UpsertConnection(ctx, library.Connection{Platform: library.PlatformSoundCloud, AccessToken: "at"})
	require.NoError(t, err)

	for range 2 {
		w := env.do(t, http.MethodPost, "/api/platforms/soundcloud/sync", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[syncResponse](t, w)
		assert.Equal(t, 2, resp.Count)
		for _, pl := range resp.Playlists {
			assert.Equal(t, library.SourceSoundCloud, pl.Source)
		}
	}

	all, err := env.lib.ListPlaylists(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	conn, err := env.lib.GetConnection(ctx, library.PlatformSoundCloud)
	require.NoError(t, err)
	assert.NotNil(t, conn.LastSyncAt)
	assert.Empty(t, auth.refreshed)
}

func TestPlatforms_SyncRefreshesExpiredToken(t *testing.T) {
	auth := &fakeAuth{
		refreshTok: oauth.Token{AccessToken: "fresh", ExpiresIn: 3600},
		playlists:  []oauth.RemotePlaylist{{ExternalID: "x", Name: "X"}},
	}
	env := platformEnv(t, auth)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	_, err := env.lib.UpsertConnection(ctx, library.Connection{
		Platform:     library.PlatformYouTube,
		AccessToken:  "stale",
		RefreshToken: "rt",
		ExpiresAt:    &past,
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/platforms/youtube/sync", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"rt"}, auth.refreshed)

	conn, err := env.lib.GetConnection(ctx, library.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, "fresh", conn.AccessToken)
	assert.Equal(t, "rt", conn.RefreshToken)
	assert.False(t, conn.Expired(time.Now()))
}

func TestPlatforms_SyncExpiredWithoutRefreshToken(t *testing.T) {
	env := platformEnv(t, &fakeAuth{})
	past := time.Now().Add(-time.Minute)
	_, err := env.lib.UpsertConnection(context.Background(), library.Connection{
		Platform:    library.PlatformSpotify,
		AccessToken: "stale",
		ExpiresAt:   &past,
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/platforms/spotify/sync", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w), "reconnect")
}

func TestPlatforms_Disconnect(t *testing.T) {
	env := platformEnv(t, &fakeAuth{})
	_, err := env.lib.UpsertConnection(context.Background(), library.Connection{Platform: library.PlatformSpotify, AccessToken: "at"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/platforms/spotify", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/platforms/spotify", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/platforms/spotify/sync", nil).Code)
}

func TestPlatforms_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/platforms/spotify/authorize?redirectUri=x", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
