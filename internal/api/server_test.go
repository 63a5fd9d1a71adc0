// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom/internal/blob"
	"github.com/cutroom/cutroom/internal/captions"
	"github.com/cutroom/cutroom/internal/config"
	"github.com/cutroom/cutroom/internal/httpx"
	"github.com/cutroom/cutroom/internal/jobs"
	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/media"
	"github.com/cutroom/cutroom/internal/resilience"
	"github.com/cutroom/cutroom/internal/subtitle"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/cutroom/cutroom/internal/upstream/oauth"
	"github.com/cutroom/cutroom/internal/upstream/shazam"
	"github.com/cutroom/cutroom/internal/upstream/youtube"
)

// fakeTranscoder writes a fixed payload to the command's output file.
type fakeTranscoder struct {
	mu       sync.Mutex
	cmds     []media.Command
	payload  []byte
	err      error
	duration float64
}

func (f *fakeTranscoder) Execute(_ context.Context, cmd media.Command) error {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	err, payload := f.err, f.payload
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if payload == nil {
		payload = []byte("rendered:" + cmd.Op)
	}
	return os.WriteFile(cmd.Output, payload, 0o600)
}

func (f *fakeTranscoder) Probe(context.Context, string) (float64, error) {
	if f.duration == 0 {
		return 0, errors.New("no duration")
	}
	return f.duration, nil
}

func (f *fakeTranscoder) commands() []media.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]media.Command(nil), f.cmds...)
}

type fakeDownloads struct {
	mu   sync.Mutex
	jobs map[string]jobs.Job
	err  error
}

func (f *fakeDownloads) Submit(_ context.Context, uploadID, url string) (jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return jobs.Job{}, f.err
	}
	if f.jobs == nil {
		f.jobs = make(map[string]jobs.Job)
	}
	j := jobs.Job{
		ID:        fmt.Sprintf("job-%d", len(f.jobs)+1),
		UploadID:  uploadID,
		URL:       url,
		Status:    library.StatusPending,
		CreatedAt: time.Now(),
	}
	f.jobs[j.ID] = j
	return j, nil
}

func (f *fakeDownloads) Get(_ context.Context, id string) (jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return j, nil
}

type fakeResolver struct {
	playlist youtube.Playlist
	err      error
}

func (f *fakeResolver) Resolve(context.Context, string) (youtube.Playlist, error) {
	return f.playlist, f.err
}

type fakeSongs struct {
	sample []byte
	match  shazam.Match
	err    error
}

func (f *fakeSongs) Identify(_ context.Context, sample []byte) (shazam.Match, error) {
	f.sample = sample
	if len(sample) == 0 {
		return shazam.Match{}, shazam.ErrEmptySample
	}
	return f.match, f.err
}

type fakeAuth struct {
	exchanged  []string
	refreshed  []string
	token      oauth.Token
	refreshTok oauth.Token
	playlists  []oauth.RemotePlaylist
	err        error
}

func (f *fakeAuth) AuthorizeURL(p library.Platform, redirectURI string) (string, string, error) {
	if p == library.PlatformAppleMusic {
		return "", "", oauth.ErrNoCodeFlow
	}
	return "https://auth.example/" + string(p) + "?redirect_uri=" + redirectURI, "state-1", nil
}

func (f *fakeAuth) Exchange(_ context.Context, _ library.Platform, code, _, state string) (oauth.Token, error) {
	if f.err != nil {
		return oauth.Token{}, f.err
	}
	if state != "state-1" {
		return oauth.Token{}, oauth.ErrInvalidState
	}
	f.exchanged = append(f.exchanged, code)
	return f.token, nil
}

func (f *fakeAuth) Refresh(_ context.Context, _ library.Platform, refreshToken string) (oauth.Token, error) {
	f.refreshed = append(f.refreshed, refreshToken)
	return f.refreshTok, nil
}

func (f *fakeAuth) Playlists(_ context.Context, _ library.Platform, accessToken string) ([]oauth.RemotePlaylist, error) {
	if f.err != nil {
		return nil, f.err
	}
	if accessToken == "" {
		return nil, errors.New("missing token")
	}
	return f.playlists, nil
}

type testEnv struct {
	srv   *Server
	lib   *library.Store
	blobs *blob.Store
	media *fakeTranscoder
	deps  Deps
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	ctx := context.Background()
	lib, err := library.NewStore(ctx, filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close() })
	blobs, err := blob.New(t.TempDir())
	require.NoError(t, err)

	tc := &fakeTranscoder{duration: 12.5}
	deps := Deps{
		Library:  lib,
		Blobs:    blobs,
		Captions: captions.NewService(lib, blobs, subtitle.Policy{MinCueDuration: time.Second}),
		Media:    tc,
	}
	for _, m := range mutate {
		m(&deps)
	}

	cfg := config.Defaults()
	cfg.Version = "test"
	srv, err := NewServer(cfg, deps)
	require.NoError(t, err)
	return &testEnv{srv: srv, lib: lib, blobs: blobs, media: tc, deps: deps}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		if _, raw := body.([]byte); !raw {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

// seedUpload stores content as a completed local upload.
func (e *testEnv) seedUpload(t *testing.T, title, content string) library.Upload {
	t.Helper()
	ctx := context.Background()
	key := blob.NewKey(uploadDir, title+".mp4")
	n, err := e.blobs.Put(ctx, key, strings.NewReader(content))
	require.NoError(t, err)
	u, err := e.lib.CreateUpload(ctx, library.Upload{
		Title:          title,
		StoragePath:    key,
		MimeType:       "video/mp4",
		SizeBytes:      n,
		DownloadStatus: library.StatusCompleted,
	})
	require.NoError(t, err)
	return u
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func TestNewServer_RequiresCoreDeps(t *testing.T) {
	_, err := NewServer(config.Defaults(), Deps{})
	require.Error(t, err)
}

func TestVersionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[map[string]string](t, w)
	assert.Equal(t, "test", got["version"])
	assert.Equal(t, env.srv.spec.Info.Version, got["apiVersion"])
	assert.NotEmpty(t, got["goVersion"])
}

func TestOpenAPIEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Equal(t, openAPIDocument, w.Body.Bytes())
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/readyz", nil).Code)
}

func TestErrorResponseCarriesRequestID(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/uploads/missing", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "req-42", body["requestId"])
	assert.NotEmpty(t, body["error"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"bad request", badRequest("name is required"), http.StatusBadRequest, "name is required"},
		{"invalid media", fmt.Errorf("cut: %w", media.ErrInvalidSpec), http.StatusBadRequest, ""},
		{"invalid order", library.ErrInvalidOrder, http.StatusBadRequest, ""},
		{"not found", fmt.Errorf("upload: %w", library.ErrNotFound), http.StatusNotFound, ""},
		{"unknown platform", oauth.ErrUnknownPlatform, http.StatusNotFound, ""},
		{"breaker open", fmt.Errorf("shazam: %w", resilience.ErrCircuitOpen), http.StatusServiceUnavailable, ""},
		{"not configured", fmt.Errorf("shazam: %w", upstream.ErrNotConfigured), http.StatusServiceUnavailable, ""},
		{"queue full", jobs.ErrQueueFull, http.StatusServiceUnavailable, ""},
		{"upstream status", &httpx.StatusError{StatusCode: http.StatusTeapot}, http.StatusBadGateway, ""},
		{"ffmpeg", &media.Error{Op: "ffmpeg cut", Err: errors.New("exit status 1")}, http.StatusInternalServerError, "ffmpeg cut failed"},
		{"storage", fmt.Errorf("%w: disk full", captions.ErrStorage), http.StatusInternalServerError, ""},
		{"opaque", errors.New("database is locked"), http.StatusInternalServerError, "internal server error"},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "request body exceeds 10 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := classify(tt.err)
			assert.Equal(t, tt.status, status)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, msg)
			}
		})
	}
}

func TestUpstreamError(t *testing.T) {
	status, _ := classify(upstreamError(errors.New("connection refused")))
	assert.Equal(t, http.StatusBadGateway, status)

	status, _ = classify(upstreamError(fmt.Errorf("x: %w", upstream.ErrNotConfigured)))
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = classify(upstreamError(&media.Error{Op: "ffmpeg sample", Err: errors.New("boom")}))
	assert.Equal(t, http.StatusInternalServerError, status)

	status, _ = classify(upstreamError(fmt.Errorf("%w: write", captions.ErrStorage)))
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/playlists", `{"name":"x","bogus":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w), "bogus")
}
