// SPDX-License-Identifier: MIT

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cutroom/cutroom/internal/httpx"
	"github.com/cutroom/cutroom/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaller_DoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":42}`))
	}))
	defer srv.Close()

	c := NewCaller("test", Options{HTTPClient: srv.Client()})
	req, err := NewJSONRequest(context.Background(), http.MethodPost, srv.URL, map[string]string{"q": "x"})
	require.NoError(t, err)

	var out struct {
		Answer int `json:"answer"`
	}
	require.NoError(t, c.DoJSON(req, &out))
	assert.Equal(t, 42, out.Answer)
}

func TestCaller_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewCaller("test", Options{HTTPClient: srv.Client(), FailureThreshold: 2})
	for i := 0; i < 5; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		_, err := c.Do(req)
		var se *httpx.StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
	}
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, resilience.StateClosed, c.Breaker().State())
}

func TestCaller_ServerErrorsOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewCaller("test", Options{HTTPClient: srv.Client(), FailureThreshold: 2})
	for i := 0; i < 4; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		_, _ = c.Do(req)
	}
	assert.Equal(t, int32(2), calls.Load())

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	_, err := c.Do(req)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestCaller_FetchLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	c := NewCaller("test", Options{HTTPClient: srv.Client()})
	body, err := c.Fetch(context.Background(), srv.URL, 10)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(body))

	_, err = c.Fetch(context.Background(), srv.URL, 5)
	assert.ErrorContains(t, err, "exceeds")
}
