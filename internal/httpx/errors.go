// SPDX-License-Identifier: MIT

package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an upstream error response is kept.
const maxErrorBody = 4 << 10

// StatusError is returned when an upstream answers with a non-2xx status.
type StatusError struct {
	Upstream   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Upstream, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Upstream, e.StatusCode, e.Body)
}

// CheckResponse returns a *StatusError for non-2xx responses. The body is
// consumed and closed in that case.
func CheckResponse(upstream string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Upstream:   upstream,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// IsUpstreamFault reports whether err should count against an upstream's
// circuit breaker. Client errors other than 408 and 429 are the caller's fault.
func IsUpstreamFault(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode >= 500 {
			return true
		}
		return se.StatusCode == http.StatusRequestTimeout || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// DrainClose discards the rest of body so the connection can be reused.
func DrainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
