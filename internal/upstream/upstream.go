// SPDX-License-Identifier: MIT

// Package upstream wraps outbound calls to third-party APIs with a circuit
// breaker, bounded timeouts and per-upstream metrics.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cutroom/cutroom/internal/httpx"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/metrics"
	"github.com/cutroom/cutroom/internal/resilience"
)

// ErrNotConfigured is returned when an upstream lacks credentials or a base URL.
var ErrNotConfigured = errors.New("upstream not configured")

// maxJSONBody bounds decoded upstream responses.
const maxJSONBody = 8 << 20

// Options tune a Caller.
type Options struct {
	Timeout          time.Duration
	FailureThreshold int
	OpenTimeout      time.Duration
	// HTTPClient overrides the default traced client (tests).
	HTTPClient *http.Client
}

// Caller performs requests against one named upstream.
type Caller struct {
	name    string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewCaller builds a Caller for the named upstream.
func NewCaller(name string, opts Options) *Caller {
	client := opts.HTTPClient
	if client == nil {
		client = httpx.NewClient(opts.Timeout)
	}
	threshold := opts.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	openTimeout := opts.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	return &Caller{
		name:    name,
		client:  client,
		breaker: resilience.NewCircuitBreaker(name, threshold, openTimeout, resilience.WithFailureClassifier(httpx.IsUpstreamFault)),
	}
}

// Name returns the upstream name.
func (c *Caller) Name() string { return c.name }

// Breaker exposes the circuit breaker for health reporting.
func (c *Caller) Breaker() *resilience.CircuitBreaker { return c.breaker }

// Do sends req. Non-2xx answers are returned as *httpx.StatusError with the
// body already consumed. On success the caller owns resp.Body.
func (c *Caller) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	var resp *http.Response
	err := c.breaker.Execute(func() error {
		r, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		if err := httpx.CheckResponse(c.name, r); err != nil {
			return err
		}
		resp = r
		return nil
	})
	metrics.RecordUpstream(c.name, time.Since(start), err)
	if err != nil {
		logger := log.WithComponentFromContext(req.Context(), "upstream")
		logger.Warn().Err(err).
			Str(log.FieldUpstream, c.name).
			Str("method", req.Method).
			Str(log.FieldURL, req.URL.Redacted()).
			Msg("upstream request failed")
		return nil, err
	}
	return resp, nil
}

// DoJSON sends req and decodes the JSON response into out.
func (c *Caller) DoJSON(req *http.Request, out any) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer httpx.DrainClose(resp.Body)
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBody)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// Fetch downloads a body of at most limit bytes.
func (c *Caller) Fetch(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpx.DrainClose(resp.Body)
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", c.name, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%s: body exceeds %d bytes", c.name, limit)
	}
	return body, nil
}

// NewJSONRequest builds a request with body encoded as JSON. A nil body
// sends no payload.
func NewJSONRequest(ctx context.Context, method, rawURL string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
