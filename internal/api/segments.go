// SPDX-License-Identifier: MIT

package api

import (
	"archive/zip"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cutroom/cutroom/internal/blob"
	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/media"
	"github.com/go-chi/chi/v5"
)

type segmentRequest struct {
	Title string  `json:"title"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uploadID := chi.URLParam(r, "uploadId")
	if _, err := s.deps.Library.GetUpload(ctx, uploadID); err != nil {
		writeError(w, r, err)
		return
	}
	segs, err := s.deps.Library.ListSegments(ctx, uploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, segs)
}

func (s *Server) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	seg, err := s.deps.Library.CreateSegment(r.Context(), library.Segment{
		UploadID: chi.URLParam(r, "uploadId"),
		Title:    strings.TrimSpace(req.Title),
		Start:    req.Start,
		End:      req.End,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, seg)
}

func (s *Server) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	seg, err := s.deps.Library.UpdateSegment(r.Context(), library.Segment{
		ID:    chi.URLParam(r, "segmentId"),
		Title: strings.TrimSpace(req.Title),
		Start: req.Start,
		End:   req.End,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.DeleteSegment(r.Context(), chi.URLParam(r, "segmentId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type segmentIDsRequest struct {
	SegmentIDs []string `json:"segmentIds"`
}

func (s *Server) handleDeleteSegments(w http.ResponseWriter, r *http.Request) {
	var req segmentIDsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.SegmentIDs) == 0 {
		writeError(w, r, badRequest("segmentIds must not be empty"))
		return
	}
	n, err := s.deps.Library.DeleteSegments(r.Context(), req.SegmentIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// maxExportSegments bounds the number of cuts one export request may run.
const maxExportSegments = 50

type exportRequest struct {
	SegmentIDs []string `json:"segmentIds"`
	Container  string   `json:"container,omitempty"`
}

type renderedSegment struct {
	name string
	path string
}

// handleExportSegments cuts every listed segment, answers with a ZIP of the
// clips and then deletes the exported segments. Any failed cut aborts the
// export before a byte is written and nothing is deleted.
func (s *Server) handleExportSegments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	switch {
	case len(req.SegmentIDs) == 0:
		writeError(w, r, badRequest("segmentIds must not be empty"))
		return
	case len(req.SegmentIDs) > maxExportSegments:
		writeError(w, r, badRequest("at most %d segments can be exported at once", maxExportSegments))
		return
	}

	segs, err := s.deps.Library.GetSegments(ctx, req.SegmentIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dir, cleanup, err := s.deps.Blobs.WorkDir("export")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	ext := containerExt(req.Container, "mp4")
	rendered := make([]renderedSegment, 0, len(segs))
	for i, seg := range segs {
		_, input, err := s.inputPath(r, seg.UploadID)
		if err != nil {
			writeError(w, r, fmt.Errorf("segment %s: %w", seg.ID, err))
			return
		}
		out := filepath.Join(dir, fmt.Sprintf("%02d.%s", i+1, ext))
		cmd, err := media.BuildCutArgs(media.CutSpec{
			Input:     input,
			Output:    out,
			Start:     seg.Start,
			End:       seg.End,
			Container: req.Container,
		})
		if err != nil {
			writeError(w, r, fmt.Errorf("segment %s: %w", seg.ID, err))
			return
		}
		if err := s.deps.Media.Execute(ctx, cmd); err != nil {
			writeError(w, r, err)
			return
		}
		rendered = append(rendered, renderedSegment{name: segmentFileName(i, seg, ext), path: out})
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "segments.zip"}))
	w.WriteHeader(http.StatusOK)
	if err := writeZip(w, rendered); err != nil {
		// Headers are gone; the client sees a truncated archive.
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Msg("write segment archive")
		return
	}

	ids := make([]string, len(segs))
	for i, seg := range segs {
		ids[i] = seg.ID
	}
	n, err := s.deps.Library.DeleteSegments(ctx, ids)
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Msg("delete exported segments")
		return
	}
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().Int("segments", n).Msg("segments exported")
}

func segmentFileName(i int, seg library.Segment, ext string) string {
	stem := blob.Slugify(seg.Title)
	if stem == "" {
		stem = "segment"
	}
	return fmt.Sprintf("%02d-%s.%s", i+1, stem, ext)
}

// writeZip stores the clips without recompression; they are already encoded.
func writeZip(w io.Writer, files []renderedSegment) error {
	zw := zip.NewWriter(w)
	for _, f := range files {
		if err := addZipFile(zw, f); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addZipFile(zw *zip.Writer, f renderedSegment) error {
	src, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := zw.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Store})
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
