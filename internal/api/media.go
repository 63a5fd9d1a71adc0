// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cutroom/cutroom/internal/blob"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/media"
	"github.com/cutroom/cutroom/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

type cutRequest struct {
	UploadID string `json:"uploadId"`
	media.CutSpec
}

type mergeClip struct {
	UploadID string  `json:"uploadId"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}

type mergeRequest struct {
	Clips        []mergeClip `json:"clips"`
	Container    string      `json:"container,omitempty"`
	Resolution   string      `json:"resolution,omitempty"`
	Crossfade    float64     `json:"crossfade,omitempty"`
	VideoBitrate string      `json:"videoBitrate,omitempty"`
	AudioBitrate string      `json:"audioBitrate,omitempty"`
}

type audioRequest struct {
	UploadID string `json:"uploadId"`
	media.AudioSpec
}

type effectsRequest struct {
	UploadID string `json:"uploadId"`
	media.EffectSpec
}

// containerExt normalises a container name the way the argument builders do.
func containerExt(name, fallback string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	if name == "" {
		return fallback
	}
	return name
}

// outputName is the download name offered to the browser.
func outputName(title, suffix, ext string) string {
	stem := blob.Slugify(title)
	if stem == "" {
		stem = "clip"
	}
	return stem + "-" + suffix + "." + ext
}

func (s *Server) handleCut(w http.ResponseWriter, r *http.Request) {
	var req cutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, input, err := s.inputPath(r, req.UploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ext := containerExt(req.Container, "mp4")
	s.render(w, r, ext, outputName(u.Title, "cut", ext), func(dir string) (media.Command, error) {
		spec := req.CutSpec
		spec.Input = input
		spec.Output = filepath.Join(dir, "out."+ext)
		return media.BuildCutArgs(spec)
	})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Clips) < 2 {
		writeError(w, r, badRequest("merge needs at least two clips"))
		return
	}
	clips := make([]media.Clip, len(req.Clips))
	title := ""
	for i, c := range req.Clips {
		u, input, err := s.inputPath(r, c.UploadID)
		if err != nil {
			writeError(w, r, fmt.Errorf("clip %d: %w", i, err))
			return
		}
		if title == "" {
			title = u.Title
		}
		clips[i] = media.Clip{Input: input, Start: c.Start, End: c.End}
	}
	ext := containerExt(req.Container, "mp4")
	s.render(w, r, ext, outputName(title, "merged", ext), func(dir string) (media.Command, error) {
		return media.BuildMergeArgs(media.MergeSpec{
			Clips:        clips,
			Output:       filepath.Join(dir, "out."+ext),
			Container:    req.Container,
			Resolution:   req.Resolution,
			Crossfade:    req.Crossfade,
			VideoBitrate: req.VideoBitrate,
			AudioBitrate: req.AudioBitrate,
		})
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, input, err := s.inputPath(r, req.UploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ext := containerExt(req.Format, "mp3")
	s.render(w, r, ext, outputName(u.Title, "audio", ext), func(dir string) (media.Command, error) {
		spec := req.AudioSpec
		spec.Input = input
		spec.Output = filepath.Join(dir, "out."+ext)
		return media.BuildAudioArgs(spec)
	})
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	var req effectsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, input, err := s.inputPath(r, req.UploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ext := containerExt(req.Container, "mp4")
	s.render(w, r, ext, outputName(u.Title, "effects", ext), func(dir string) (media.Command, error) {
		spec := req.EffectSpec
		spec.Input = input
		spec.Output = filepath.Join(dir, "out."+ext)
		return media.BuildEffectArgs(spec)
	})
}

// render builds a command inside a scratch directory, runs it and streams the
// output file back as an attachment. The directory is removed afterwards.
func (s *Server) render(w http.ResponseWriter, r *http.Request, ext, filename string, build func(dir string) (media.Command, error)) {
	ctx := r.Context()
	dir, cleanup, err := s.deps.Blobs.WorkDir("render")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	cmd, err := build(dir)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(telemetry.MediaAttributes(cmd.Op, ext, "", 0)...)
	if err := s.deps.Media.Execute(ctx, cmd); err != nil {
		writeError(w, r, err)
		return
	}

	f, err := os.Open(cmd.Output)
	if err != nil {
		writeError(w, r, &media.Error{Op: "ffmpeg " + cmd.Op, Err: err})
		return
	}
	defer f.Close()

	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().Str(log.FieldOp, cmd.Op).Str("file", filename).Msg("render finished")
	w.Header().Set("Content-Type", media.ContentType(ext))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	http.ServeContent(w, r, filename, time.Time{}, f)
}
