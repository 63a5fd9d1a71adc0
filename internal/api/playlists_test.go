// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/upstream/youtube"
)

func TestPlaylists_CreateListGetDelete(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/playlists", map[string]any{"name": "  Road Trip ", "description": "summer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pl := decode[library.Playlist](t, w)
	assert.Equal(t, "Road Trip", pl.Name)
	assert.Equal(t, library.SourceLocal, pl.Source)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/playlists", map[string]any{"name": " "}).Code)

	w = env.do(t, http.MethodGet, "/api/playlists", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]library.Playlist](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/playlists/"+pl.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pl.ID, decode[library.Playlist](t, w).ID)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/playlists/"+pl.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/playlists/"+pl.ID, nil).Code)
}

func TestTracks_AddListReorder(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUpload(t, "local song", "bytes")
	pl := decode[library.Playlist](t, env.do(t, http.MethodPost, "/api/playlists", map[string]any{"name": "mix"}))
	base := "/api/playlists/" + pl.ID + "/tracks"

	w := env.do(t, http.MethodPost, base, map[string]any{"tracks": []map[string]any{
		{"title": "One", "artist": "A"},
		{"title": "Two", "uploadId": u.ID},
		{"title": "Three"},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode[[]library.Track](t, w)
	require.Len(t, added, 3)
	assert.Equal(t, library.StatusCompleted, added[1].DownloadStatus)
	assert.Equal(t, u.ID, added[1].UploadID)

	w = env.do(t, http.MethodPost, base, map[string]any{"tracks": []map[string]any{{"title": ""}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, base, map[string]any{"tracks": []map[string]any{{"title": "x", "uploadId": "missing"}}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	order := []string{added[2].ID, added[0].ID, added[1].ID}
	w = env.do(t, http.MethodPut, base+"/order", map[string]any{"trackIds": order})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tracks := decode[[]library.Track](t, w)
	require.Len(t, tracks, 3)
	for i, id := range order {
		assert.Equal(t, id, tracks[i].ID)
		assert.Equal(t, i, tracks[i].Position)
	}

	w = env.do(t, http.MethodPut, base+"/order", map[string]any{"trackIds": order[:2]})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPut, base+"/order", map[string]any{"trackIds": []string{order[0], order[0], order[1]}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPut, base+"/order", map[string]any{"trackIds": []string{order[0], order[1], "foreign"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPut, "/api/playlists/missing/tracks/order", map[string]any{"trackIds": order})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTracks_ReconcilesUploadStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, err := env.lib.CreateUpload(ctx, library.Upload{Title: "remote", Kind: library.KindYouTube})
	require.NoError(t, err)
	pl, err := env.lib.CreatePlaylist(ctx, library.Playlist{Name: "p"})
	require.NoError(t, err)
	added, err := env.lib.AddTracks(ctx, pl.ID, []library.Track{{Title: "t", UploadID: u.ID}})
	require.NoError(t, err)

	require.NoError(t, env.lib.UpdateUploadStatus(ctx, u.ID, library.StatusUpdate{Status: library.StatusCompleted}))

	w := env.do(t, http.MethodGet, "/api/playlists/"+pl.ID+"/tracks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tracks := decode[[]library.Track](t, w)
	require.Len(t, tracks, 1)
	assert.Equal(t, added[0].ID, tracks[0].ID)
	assert.Equal(t, library.StatusCompleted, tracks[0].DownloadStatus)

	stored, err := env.lib.ListTracks(ctx, pl.ID)
	require.NoError(t, err)
	assert.Equal(t, library.StatusCompleted, stored[0].DownloadStatus)
}

func importEnv(t *testing.T, resolver *fakeResolver, downloads *fakeDownloads) *testEnv {
	return newTestEnv(t, func(d *Deps) {
		d.Playlists = resolver
		if downloads != nil {
			d.Downloads = downloads
		}
	})
}

func TestImportPlaylist_AddsOnlyNewVideos(t *testing.T) {
	resolver := &fakeResolver{playlist: youtube.Playlist{
		ID:    "PL123",
		Title: "Lo-fi",
		URL:   "https://www.youtube.com/playlist?list=PL123",
		Videos: []youtube.Video{
			{ID: "a", Title: "Alpha", URL: "https://www.youtube.com/watch?v=a"},
			{ID: "b", Title: "Beta", URL: "https://www.youtube.com/watch?v=b"},
		},
	}}
	env := importEnv(t, resolver, nil)
	body := map[string]any{"url": "https://www.youtube.com/playlist?list=PL123"}

	w := env.do(t, http.MethodPost, "/api/playlists/import", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[importResponse](t, w)
	assert.Equal(t, "Lo-fi", first.Playlist.Name)
	assert.Equal(t, library.SourceYouTube, first.Playlist.Source)
	assert.Equal(t, "PL123", first.Playlist.ExternalID)
	assert.Equal(t, 2, first.Playlist.TrackCount)
	require.Len(t, first.Added, 2)
	assert.Equal(t, library.StatusPending, first.Added[0].DownloadStatus)

	resolver.playlist.Videos = append(resolver.playlist.Videos,
		youtube.Video{ID: "c", Title: "Gamma", URL: "https://www.youtube.com/watch?v=c"})
	w = env.do(t, http.MethodPost, "/api/playlists/import", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	second := decode[importResponse](t, w)
	assert.Equal(t, first.Playlist.ID, second.Playlist.ID)
	require.Len(t, second.Added, 1)
	assert.Equal(t, "c", second.Added[0].ExternalID)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 3, second.Playlist.TrackCount)
}

func TestImportPlaylist_QueuesDownloads(t *testing.T) {
	resolver := &fakeResolver{playlist: youtube.Playlist{
		ID:     "PL9",
		Title:  "Queue",
		Videos: []youtube.Video{{ID: "v1", Title: "One", URL: "https://www.youtube.com/watch?v=v1"}},
	}}
	downloads := &fakeDownloads{}
	env := importEnv(t, resolver, downloads)

	w := env.do(t, http.MethodPost, "/api/playlists/import", map[string]any{
		"url":      "https://www.youtube.com/playlist?list=PL9",
		"download": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[importResponse](t, w)
	require.Len(t, resp.Added, 1)
	require.NotEmpty(t, resp.Added[0].UploadID)

	u, err := env.lib.GetUpload(context.Background(), resp.Added[0].UploadID)
	require.NoError(t, err)
	assert.Equal(t, library.KindYouTube, u.Kind)
	assert.Equal(t, "https://www.youtube.com/watch?v=v1", u.SourceURL)
	assert.Len(t, downloads.jobs, 1)
}

func TestImportPlaylist_Errors(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/playlists/import", map[string]any{"url": "https://www.youtube.com/playlist?list=x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env = importEnv(t, &fakeResolver{err: youtube.ErrNotPlaylist}, nil)
	w = env.do(t, http.MethodPost, "/api/playlists/import", map[string]any{"url": "https://www.youtube.com/watch?v=a"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/playlists/import", map[string]any{"url": "file:///etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env = importEnv(t, &fakeResolver{err: errors.New("extractor broke")}, nil)
	w = env.do(t, http.MethodPost, "/api/playlists/import", map[string]any{"url": "https://www.youtube.com/playlist?list=x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
