// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cutroom/cutroom/internal/media"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/cutroom/cutroom/internal/upstream/shazam"
)

type identifyRequest struct {
	UploadID string  `json:"uploadId"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration,omitempty"`
}

// handleIdentifySong recognises either a raw PCM body or a sample cut from a
// stored upload.
func (s *Server) handleIdentifySong(w http.ResponseWriter, r *http.Request) {
	if s.deps.Songs == nil {
		writeError(w, r, fmt.Errorf("song identification: %w", upstream.ErrNotConfigured))
		return
	}

	var sample []byte
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req identifyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		_, input, err := s.inputPath(r, req.UploadID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sample, err = s.extractSample(r.Context(), input, req.Start, req.Duration)
		if err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		var err error
		sample, err = io.ReadAll(io.LimitReader(r.Body, shazam.MaxSampleBytes))
		if err != nil {
			writeError(w, r, badRequest("read audio body: %v", err))
			return
		}
	}

	match, err := s.deps.Songs.Identify(r.Context(), sample)
	if err != nil {
		writeError(w, r, upstreamError(err))
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (s *Server) extractSample(ctx context.Context, input string, start, duration float64) ([]byte, error) {
	dir, cleanup, err := s.deps.Blobs.WorkDir("sample")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cmd, err := media.BuildSampleArgs(input, filepath.Join(dir, "sample.pcm"), start, duration)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Media.Execute(ctx, cmd); err != nil {
		return nil, err
	}
	return os.ReadFile(cmd.Output)
}
