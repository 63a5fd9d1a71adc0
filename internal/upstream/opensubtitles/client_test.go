// SPDX-License-Identifier: MIT

package opensubtitles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cutroom/cutroom/internal/cache"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
  "total_count": 1,
  "data": [{
    "id": "9000",
    "attributes": {
      "language": "en",
      "release": "The.Matrix.1999.1080p",
      "download_count": 1234,
      "from_trusted": true,
      "files": [{"file_id": 42, "file_name": "matrix.srt"}],
      "feature_details": {"title": "The Matrix", "year": 1999}
    }
  }]
}`

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL + "/", APIKey: "secret", UserAgent: "cutroom test"},
		upstream.Options{HTTPClient: srv.Client()}, cache.NewMemoryCache(0))
	return c, &calls
}

func TestSearch(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subtitles", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Api-Key"))
		assert.Equal(t, "cutroom test", r.Header.Get("User-Agent"))
		assert.Equal(t, "matrix", r.URL.Query().Get("query"))
		assert.Equal(t, "de,en", r.URL.Query().Get("languages"))
		assert.Equal(t, "0133093", r.URL.Query().Get("imdb_id"))
		_, _ = w.Write([]byte(searchBody))
	})

	params := SearchParams{Query: "matrix", Languages: []string{"DE", " en"}, IMDbID: "tt0133093"}
	got, err := c.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Result{
		ID: "9000", FileID: 42, FileName: "matrix.srt", Language: "en",
		Release: "The.Matrix.1999.1080p", Title: "The Matrix", Year: 1999,
		Downloads: 1234, Trusted: true,
	}, got[0])

	_, err = c.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second search is served from cache")
}

func TestSearch_RequiresQuery(t *testing.T) {
	c, calls := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	_, err := c.Search(context.Background(), SearchParams{Languages: []string{"en"}})
	require.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestSearch_NotConfigured(t *testing.T) {
	c := New(Config{BaseURL: "http://example.invalid"}, upstream.Options{}, nil)
	_, err := c.Search(context.Background(), SearchParams{Query: "x"})
	assert.ErrorIs(t, err, upstream.ErrNotConfigured)
}

func TestDownloadLinkAndFetch(t *testing.T) {
	var base string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/download":
			assert.Equal(t, http.MethodPost, r.Method)
			var body map[string]int
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 42, body["file_id"])
			_, _ = w.Write([]byte(`{"link":"` + base + `/files/matrix.srt","file_name":"matrix.srt","remaining":99}`))
		case "/files/matrix.srt":
			_, _ = w.Write([]byte("1\n00:00:01,000 --> 00:00:02,000\nHi\n"))
		default:
			http.NotFound(w, r)
		}
	})
	base = c.cfg.BaseURL

	link, err := c.DownloadLink(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "matrix.srt", link.FileName)
	assert.Equal(t, 99, link.Remaining)

	body, err := c.Fetch(context.Background(), link)
	require.NoError(t, err)
	assert.Contains(t, string(body), "00:00:01,000")
}

func TestDownloadLink_UpstreamError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusNotAcceptable)
	})
	_, err := c.DownloadLink(context.Background(), 42)
	assert.ErrorContains(t, err, "quota exceeded")
}
