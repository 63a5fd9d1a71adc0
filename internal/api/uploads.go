// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/cutroom/cutroom/internal/blob"
	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/media"
	"github.com/go-chi/chi/v5"
)

const (
	// uploadDir is the blob prefix for media uploaded from the browser.
	uploadDir = "uploads"
	// multipartMemory is kept in RAM before parts spill to temp files.
	multipartMemory = 32 << 20
)

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.deps.Library.ListUploads(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploads)
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Library.GetUpload(r.Context(), chi.URLParam(r, "uploadId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleCreateUpload stores a multipart "file" part and registers it as a
// completed local upload.
func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, badRequest("expected multipart/form-data with a file part: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, badRequest("file part is required"))
		return
	}
	defer file.Close()

	key := blob.NewKey(uploadDir, header.Filename)
	n, err := s.deps.Blobs.Put(ctx, key, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(header.Filename, path.Ext(header.Filename))
	}
	u := library.Upload{
		Title:          title,
		Kind:           library.KindLocal,
		StoragePath:    key,
		MimeType:       uploadMimeType(header.Filename, header.Header.Get("Content-Type")),
		SizeBytes:      n,
		DownloadStatus: library.StatusCompleted,
	}
	if p, err := s.deps.Blobs.Path(key); err == nil {
		if d, err := s.deps.Media.Probe(ctx, p); err == nil {
			u.DurationSeconds = d
		} else {
			logger := log.WithComponentFromContext(ctx, "api")
			logger.Warn().Err(err).Str(log.FieldPath, key).Msg("probe upload duration")
		}
	}

	u, err = s.deps.Library.CreateUpload(ctx, u)
	if err != nil {
		if delErr := s.deps.Blobs.Delete(key); delErr != nil {
			logger := log.WithComponentFromContext(ctx, "api")
			logger.Warn().Err(delErr).Str(log.FieldPath, key).Msg("remove orphaned upload")
		}
		writeError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().
		Str(log.FieldUploadID, u.ID).
		Int64("bytes", n).
		Msg("upload stored")
	writeJSON(w, http.StatusCreated, u)
}

// uploadMimeType prefers the container table over what the browser claims.
func uploadMimeType(filename, declared string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext != "" {
		if ct := media.ContentType(ext); ct != "application/octet-stream" {
			return ct
		}
		if ct := mime.TypeByExtension("." + ext); ct != "" {
			return ct
		}
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

// handleDeleteUpload removes the row first. Blob cleanup failures only leave
// orphaned files behind and are logged.
func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "uploadId")
	u, err := s.deps.Library.GetUpload(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	subs, err := s.deps.Library.ListSubtitles(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Library.DeleteUpload(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}

	keys := make([]string, 0, len(subs)+1)
	if u.StoragePath != "" {
		keys = append(keys, u.StoragePath)
	}
	for _, sub := range subs {
		keys = append(keys, sub.StoragePath)
	}
	for _, key := range keys {
		if err := s.deps.Blobs.Delete(key); err != nil {
			logger := log.WithComponentFromContext(ctx, "api")
			logger.Warn().Err(err).Str(log.FieldPath, key).Msg("delete upload blob")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadFile streams the stored media with range support for the player.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	u, err := s.readyUpload(r, chi.URLParam(r, "uploadId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.deps.Blobs.Open(u.StoragePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if u.MimeType != "" {
		w.Header().Set("Content-Type", u.MimeType)
	}
	http.ServeContent(w, r, path.Base(u.StoragePath), fi.ModTime(), f)
}

// readyUpload loads an upload whose media is available in blob storage.
func (s *Server) readyUpload(r *http.Request, id string) (library.Upload, error) {
	if strings.TrimSpace(id) == "" {
		return library.Upload{}, badRequest("uploadId is required")
	}
	u, err := s.deps.Library.GetUpload(r.Context(), id)
	if err != nil {
		return library.Upload{}, err
	}
	if u.DownloadStatus != library.StatusCompleted || u.StoragePath == "" {
		return library.Upload{}, badRequest("upload %s is not ready (status %s)", id, u.DownloadStatus)
	}
	return u, nil
}

// inputPath resolves the media file of a ready upload.
func (s *Server) inputPath(r *http.Request, id string) (library.Upload, string, error) {
	u, err := s.readyUpload(r, id)
	if err != nil {
		return library.Upload{}, "", err
	}
	p, err := s.deps.Blobs.Path(u.StoragePath)
	if err != nil {
		return library.Upload{}, "", err
	}
	return u, p, nil
}
