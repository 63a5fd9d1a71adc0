// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/cutroom/cutroom/internal/captions"
	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/upstream/opensubtitles"
	"github.com/go-chi/chi/v5"
)

type adjustTimingRequest struct {
	SubtitleID    string   `json:"subtitleId"`
	OffsetSeconds *float64 `json:"offsetSeconds"`
}

type adjustTimingResponse struct {
	Success       bool             `json:"success"`
	Subtitle      library.Subtitle `json:"subtitle"`
	OffsetApplied float64          `json:"offsetApplied"`
	Message       string           `json:"message"`
}

// handleAdjustTiming keeps the editor's contract: every failure is a 400 with
// a bare {"error"} body.
func (s *Server) handleAdjustTiming(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		_, msg := classify(err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
	}

	var req adjustTimingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(err)
		return
	}
	if strings.TrimSpace(req.SubtitleID) == "" {
		fail(badRequest("subtitleId is required"))
		return
	}
	if req.OffsetSeconds == nil {
		fail(badRequest("offsetSeconds is required"))
		return
	}

	res, err := s.deps.Captions.AdjustTiming(r.Context(), req.SubtitleID, *req.OffsetSeconds)
	if err != nil {
		fail(err)
		return
	}
	writeJSON(w, http.StatusOK, adjustTimingResponse{
		Success:       true,
		Subtitle:      res.Subtitle,
		OffsetApplied: res.OffsetApplied,
		Message:       fmt.Sprintf("Shifted %d cues by %s", res.Cues, formatOffset(res.OffsetApplied)),
	})
}

func formatOffset(o float64) string {
	sign := "+"
	if o < 0 {
		sign = "-"
	}
	return sign + strconv.FormatFloat(math.Abs(o), 'f', -1, 64) + "s"
}

func (s *Server) handleListSubtitles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uploadID := chi.URLParam(r, "uploadId")
	if _, err := s.deps.Library.GetUpload(ctx, uploadID); err != nil {
		writeError(w, r, err)
		return
	}
	subs, err := s.deps.Captions.List(ctx, uploadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// handleUploadSubtitle accepts either a multipart "file" part or a raw SRT
// body. name and language come from form fields or the query string.
func (s *Server) handleUploadSubtitle(w http.ResponseWriter, r *http.Request) {
	req := captions.UploadRequest{
		UploadID: chi.URLParam(r, "uploadId"),
		Name:     r.URL.Query().Get("name"),
		Language: r.URL.Query().Get("language"),
	}
	body := http.MaxBytesReader(w, r.Body, captions.MaxDocumentBytes+multipartMemory)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = body
		if err := r.ParseMultipartForm(captions.MaxDocumentBytes); err != nil {
			writeError(w, r, badRequest("invalid multipart body: %v", err))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, badRequest("file part is required"))
			return
		}
		defer file.Close()
		if v := r.FormValue("name"); v != "" {
			req.Name = v
		} else if req.Name == "" {
			req.Name = header.Filename
		}
		if v := r.FormValue("language"); v != "" {
			req.Language = v
		}
		req.Body = file
	} else {
		req.Body = body
	}

	sub, err := s.deps.Captions.Upload(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleGetSubtitle(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Captions.Get(r.Context(), chi.URLParam(r, "subtitleId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleSubtitleContent(w http.ResponseWriter, r *http.Request) {
	sub, data, err := s.deps.Captions.Content(r.Context(), chi.URLParam(r, "subtitleId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": sub.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDeleteSubtitle(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Captions.Delete(r.Context(), chi.URLParam(r, "subtitleId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchSubtitles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := opensubtitles.SearchParams{
		Query:  strings.TrimSpace(q.Get("query")),
		IMDbID: strings.TrimSpace(q.Get("imdbId")),
	}
	for _, lang := range strings.Split(q.Get("languages"), ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			params.Languages = append(params.Languages, strings.ToLower(lang))
		}
	}
	results, err := s.deps.Captions.Search(r.Context(), params)
	if err != nil {
		writeError(w, r, upstreamError(err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type subtitleDownloadRequest struct {
	FileID   int    `json:"fileId"`
	UploadID string `json:"uploadId,omitempty"`
	Language string `json:"language,omitempty"`
}

func (s *Server) handleDownloadSubtitle(w http.ResponseWriter, r *http.Request) {
	var req subtitleDownloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := s.deps.Captions.Download(r.Context(), captions.DownloadRequest{
		FileID:   req.FileID,
		UploadID: req.UploadID,
		Language: req.Language,
	})
	if err != nil {
		writeError(w, r, upstreamError(err))
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type translateRequest struct {
	TargetLanguage string `json:"targetLanguage"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
}

func (s *Server) handleTranslateSubtitle(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := s.deps.Captions.Translate(r.Context(), chi.URLParam(r, "subtitleId"), req.TargetLanguage, req.SourceLanguage)
	if err != nil {
		writeError(w, r, upstreamError(err))
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}
