// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cutroom/cutroom/internal/blob"
	"github.com/cutroom/cutroom/internal/captions"
	"github.com/cutroom/cutroom/internal/httpx"
	"github.com/cutroom/cutroom/internal/jobs"
	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/media"
	"github.com/cutroom/cutroom/internal/resilience"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/cutroom/cutroom/internal/upstream/oauth"
	"github.com/cutroom/cutroom/internal/upstream/shazam"
	"github.com/cutroom/cutroom/internal/upstream/youtube"
)

// apiError carries an explicit status for failures detected in the handlers.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// upstreamError marks err as a failed third-party call unless it already
// maps to a more specific status.
func upstreamError(err error) error {
	if status, _ := classify(err); status != http.StatusInternalServerError || isLocalFailure(err) {
		return err
	}
	return &apiError{status: http.StatusBadGateway, msg: err.Error()}
}

// isLocalFailure reports storage and transcoder errors, which stay 500 even
// inside forwarding handlers.
func isLocalFailure(err error) bool {
	var mediaErr *media.Error
	return errors.Is(err, captions.ErrStorage) || errors.As(err, &mediaErr)
}

var badRequestErrors = []error{
	captions.ErrInvalid,
	media.ErrInvalidSpec,
	library.ErrInvalidSegment,
	library.ErrInvalidOrder,
	oauth.ErrInvalidState,
	oauth.ErrNoCodeFlow,
	shazam.ErrEmptySample,
	youtube.ErrNotPlaylist,
}

var notFoundErrors = []error{
	captions.ErrNotFound,
	library.ErrNotFound,
	jobs.ErrNotFound,
	blob.ErrNotFound,
	oauth.ErrUnknownPlatform,
}

var unavailableErrors = []error{
	resilience.ErrCircuitOpen,
	upstream.ErrNotConfigured,
	jobs.ErrQueueFull,
	jobs.ErrClosed,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// classify maps err to an HTTP status and the message shown to clients.
// Internal failures keep their detail in the logs only.
func classify(err error) (int, string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ae.msg
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxBytes.Limit)
	}
	switch {
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest, err.Error()
	case isAny(err, notFoundErrors):
		return http.StatusNotFound, err.Error()
	case isAny(err, unavailableErrors):
		return http.StatusServiceUnavailable, err.Error()
	}
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		return http.StatusBadGateway, err.Error()
	}
	var mediaErr *media.Error
	if errors.As(err, &mediaErr) {
		return http.StatusInternalServerError, mediaErr.Op + " failed"
	}
	if errors.Is(err, captions.ErrStorage) {
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err and answers with {"error","requestId"}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	logger := log.WithComponentFromContext(r.Context(), "api")
	evt := logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	evt.Err(err).Int(log.FieldStatus, status).Str(log.FieldPath, r.URL.Path).Msg("request failed")

	writeJSON(w, status, map[string]string{
		"error":     msg,
		"requestId": log.RequestIDFromContext(r.Context()),
	})
}

// maxJSONBody bounds decoded request bodies.
const maxJSONBody = 1 << 20

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
