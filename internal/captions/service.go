// SPDX-License-Identifier: MIT

// Package captions manages stored subtitle documents: uploads, retiming,
// OpenSubtitles imports and machine translation.
package captions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/cutroom/cutroom/internal/blob"
	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/metrics"
	"github.com/cutroom/cutroom/internal/subtitle"
)

var (
	// ErrInvalid marks a request the caller must fix.
	ErrInvalid = errors.New("invalid subtitle request")
	// ErrNotFound is returned for unknown subtitles or uploads.
	ErrNotFound = errors.New("subtitle not found")
	// ErrStorage wraps blob and database failures.
	ErrStorage = errors.New("subtitle storage failure")
)

// MaxDocumentBytes bounds uploaded and downloaded SRT documents.
const MaxDocumentBytes = 5 << 20

// subtitleDir is the blob prefix for SRT documents.
const subtitleDir = "subtitles"

// Repository is the slice of the library store the service needs.
type Repository interface {
	GetUpload(ctx context.Context, id string) (library.Upload, error)
	InsertSubtitle(ctx context.Context, sub library.Subtitle) (library.Subtitle, error)
	GetSubtitle(ctx context.Context, id string) (library.Subtitle, error)
	ListSubtitles(ctx context.Context, uploadID string) ([]library.Subtitle, error)
	DeleteSubtitle(ctx context.Context, id string) error
}

// Blobs stores document bytes.
type Blobs interface {
	PutBytes(ctx context.Context, key string, data []byte) error
	ReadAll(key string) ([]byte, error)
	Delete(key string) error
}

// Service implements the subtitle operations.
type Service struct {
	repo       Repository
	blobs      Blobs
	policy     subtitle.Policy
	search     Searcher
	translator Translator
}

// Option customises a Service.
type Option func(*Service)

// WithSearcher enables OpenSubtitles search and download.
func WithSearcher(s Searcher) Option {
	return func(svc *Service) { svc.search = s }
}

// WithTranslator enables machine translation.
func WithTranslator(t Translator) Option {
	return func(svc *Service) { svc.translator = t }
}

func NewService(repo Repository, blobs Blobs, policy subtitle.Policy, opts ...Option) *Service {
	s := &Service{repo: repo, blobs: blobs, policy: policy}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (s *Service) lookup(ctx context.Context, id string) (library.Subtitle, error) {
	sub, err := s.repo.GetSubtitle(ctx, id)
	if errors.Is(err, library.ErrNotFound) {
		return library.Subtitle{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return library.Subtitle{}, fmt.Errorf("%w: load subtitle: %w", ErrStorage, err)
	}
	return sub, nil
}

func (s *Service) requireUpload(ctx context.Context, uploadID string) error {
	_, err := s.repo.GetUpload(ctx, uploadID)
	if errors.Is(err, library.ErrNotFound) {
		return fmt.Errorf("%w: upload %s", ErrNotFound, uploadID)
	}
	if err != nil {
		return fmt.Errorf("%w: load upload: %w", ErrStorage, err)
	}
	return nil
}

func (s *Service) read(sub library.Subtitle) ([]byte, error) {
	data, err := s.blobs.ReadAll(sub.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, sub.StoragePath, err)
	}
	return data, nil
}

// store writes doc under a fresh key and inserts its metadata row.
func (s *Service) store(ctx context.Context, sub library.Subtitle, doc string) (library.Subtitle, error) {
	key := blob.NewKey(subtitleDir, sub.Name)
	if err := s.blobs.PutBytes(ctx, key, []byte(doc)); err != nil {
		return library.Subtitle{}, fmt.Errorf("%w: write document: %w", ErrStorage, err)
	}
	sub.StoragePath = key
	saved, err := s.repo.InsertSubtitle(ctx, sub)
	if err != nil {
		_ = s.blobs.Delete(key)
		return library.Subtitle{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return saved, nil
}

// AdjustResult is the outcome of a retiming.
type AdjustResult struct {
	Subtitle      library.Subtitle
	OffsetApplied float64
	Cues          int
}

// AdjustTiming shifts every cue of the stored subtitle by offsetSeconds and
// saves the result as a new subtitle derived from it. The source is untouched.
func (s *Service) AdjustTiming(ctx context.Context, id string, offsetSeconds float64) (res AdjustResult, err error) {
	logger := log.WithComponentFromContext(ctx, "captions")
	defer func() { metrics.RecordSubtitleAdjustment(res.Cues, err) }()

	if strings.TrimSpace(id) == "" {
		return AdjustResult{}, invalid("subtitleId is required")
	}
	if err := subtitle.ValidateOffset(offsetSeconds); err != nil {
		return AdjustResult{}, invalid("offsetSeconds must be finite and at most %g seconds in magnitude", subtitle.MaxOffsetSeconds)
	}

	parent, err := s.lookup(ctx, id)
	if err != nil {
		return AdjustResult{}, err
	}
	raw, err := s.read(parent)
	if err != nil {
		return AdjustResult{}, err
	}

	doc, cues := subtitle.AdjustDocument(string(raw), offsetSeconds, s.policy)
	sub, err := s.store(ctx, library.Subtitle{
		UploadID:      parent.UploadID,
		Name:          adjustedName(parent.Name, offsetSeconds),
		Language:      parent.Language,
		Source:        library.SubtitleAdjusted,
		OffsetApplied: offsetSeconds,
		ParentID:      parent.ID,
		CueCount:      cues,
	}, doc)
	if err != nil {
		return AdjustResult{}, err
	}

	logger.Info().
		Str(log.FieldSubtitleID, sub.ID).
		Str("parent_id", parent.ID).
		Float64(log.FieldOffset, offsetSeconds).
		Int(log.FieldCues, cues).
		Msg("subtitle retimed")
	return AdjustResult{Subtitle: sub, OffsetApplied: offsetSeconds, Cues: cues}, nil
}

// adjustedName turns "movie.srt" and -5 into "movie (-5s).srt".
func adjustedName(name string, offset float64) string {
	stem, ext := splitName(name)
	return fmt.Sprintf("%s (%+gs)%s", stem, offset, ext)
}

func splitName(name string) (string, string) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem = "subtitle"
	}
	if !strings.EqualFold(ext, ".srt") {
		stem, ext = stem+ext, ".srt"
	}
	return stem, ext
}

// UploadRequest is an SRT document attached to an upload.
type UploadRequest struct {
	UploadID string
	Name     string
	Language string
	Body     io.Reader
}

// Upload stores a user supplied document. Documents without a single valid
// cue are rejected.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (library.Subtitle, error) {
	if req.UploadID == "" {
		return library.Subtitle{}, invalid("uploadId is required")
	}
	if err := s.requireUpload(ctx, req.UploadID); err != nil {
		return library.Subtitle{}, err
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, MaxDocumentBytes+1))
	if err != nil {
		return library.Subtitle{}, invalid("read body: %v", err)
	}
	doc, cues, err := checkDocument(data)
	if err != nil {
		return library.Subtitle{}, err
	}

	name := req.Name
	if name == "" {
		name = "subtitle.srt"
	}
	stem, ext := splitName(path.Base(name))
	return s.store(ctx, library.Subtitle{
		UploadID: req.UploadID,
		Name:     stem + ext,
		Language: strings.ToLower(req.Language),
		Source:   library.SubtitleUploaded,
		CueCount: cues,
	}, doc)
}

func checkDocument(data []byte) (string, int, error) {
	if len(data) > MaxDocumentBytes {
		return "", 0, invalid("document exceeds %d bytes", MaxDocumentBytes)
	}
	if !utf8.Valid(data) {
		return "", 0, invalid("document is not valid UTF-8")
	}
	doc := string(data)
	cues := len(subtitle.Parse(doc))
	if cues == 0 {
		return "", 0, invalid("no SRT cues found")
	}
	return doc, cues, nil
}

// List returns the subtitles attached to an upload.
func (s *Service) List(ctx context.Context, uploadID string) ([]library.Subtitle, error) {
	subs, err := s.repo.ListSubtitles(ctx, uploadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return subs, nil
}

func (s *Service) Get(ctx context.Context, id string) (library.Subtitle, error) {
	return s.lookup(ctx, id)
}

// Content returns the metadata and document bytes.
func (s *Service) Content(ctx context.Context, id string) (library.Subtitle, []byte, error) {
	sub, err := s.lookup(ctx, id)
	if err != nil {
		return library.Subtitle{}, nil, err
	}
	data, err := s.read(sub)
	if err != nil {
		return library.Subtitle{}, nil, err
	}
	return sub, data, nil
}

// Delete removes the row, then the document.
func (s *Service) Delete(ctx context.Context, id string) error {
	sub, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSubtitle(ctx, id); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.blobs.Delete(sub.StoragePath); err != nil {
		logger := log.WithComponentFromContext(ctx, "captions")
		logger.Warn().Err(err).
			Str(log.FieldSubtitleID, id).Msg("subtitle document not removed")
	}
	return nil
}
