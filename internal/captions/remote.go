// SPDX-License-Identifier: MIT

package captions

import (
	"context"
	"fmt"
	"strings"

	"github.com/cutroom/cutroom/internal/library"
	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/subtitle"
	"github.com/cutroom/cutroom/internal/upstream"
	"github.com/cutroom/cutroom/internal/upstream/opensubtitles"
)

// Searcher finds and fetches subtitles from OpenSubtitles.
type Searcher interface {
	Search(ctx context.Context, p opensubtitles.SearchParams) ([]opensubtitles.Result, error)
	DownloadLink(ctx context.Context, fileID int) (opensubtitles.Link, error)
	Fetch(ctx context.Context, link opensubtitles.Link) ([]byte, error)
}

// Translator translates cue text in bulk, preserving order.
type Translator interface {
	Translate(ctx context.Context, texts []string, source, target string) ([]string, error)
}

// Search proxies an OpenSubtitles query.
func (s *Service) Search(ctx context.Context, p opensubtitles.SearchParams) ([]opensubtitles.Result, error) {
	if s.search == nil {
		return nil, fmt.Errorf("opensubtitles: %w", upstream.ErrNotConfigured)
	}
	if strings.TrimSpace(p.Query) == "" && strings.TrimSpace(p.IMDbID) == "" {
		return nil, invalid("query or imdbId is required")
	}
	return s.search.Search(ctx, p)
}

// DownloadRequest imports one OpenSubtitles file into an upload.
type DownloadRequest struct {
	FileID   int
	UploadID string
	Language string
}

// Download fetches a subtitle file from OpenSubtitles and stores it.
func (s *Service) Download(ctx context.Context, req DownloadRequest) (library.Subtitle, error) {
	if s.search == nil {
		return library.Subtitle{}, fmt.Errorf("opensubtitles: %w", upstream.ErrNotConfigured)
	}
	if req.FileID <= 0 {
		return library.Subtitle{}, invalid("fileId must be positive")
	}
	if req.UploadID != "" {
		if err := s.requireUpload(ctx, req.UploadID); err != nil {
			return library.Subtitle{}, err
		}
	}

	link, err := s.search.DownloadLink(ctx, req.FileID)
	if err != nil {
		return library.Subtitle{}, err
	}
	data, err := s.search.Fetch(ctx, link)
	if err != nil {
		return library.Subtitle{}, err
	}
	doc, cues, err := checkDocument(data)
	if err != nil {
		return library.Subtitle{}, fmt.Errorf("opensubtitles file %d: %w", req.FileID, err)
	}

	name := link.FileName
	if name == "" {
		name = fmt.Sprintf("opensubtitles-%d.srt", req.FileID)
	}
	stem, ext := splitName(name)
	sub, err := s.store(ctx, library.Subtitle{
		UploadID: req.UploadID,
		Name:     stem + ext,
		Language: strings.ToLower(req.Language),
		Source:   library.SubtitleOpenSubtitles,
		CueCount: cues,
	}, doc)
	if err != nil {
		return library.Subtitle{}, err
	}
	logger := log.WithComponentFromContext(ctx, "captions")
	logger.Info().
		Str(log.FieldSubtitleID, sub.ID).
		Int("file_id", req.FileID).
		Int("remaining", link.Remaining).
		Msg("subtitle imported from opensubtitles")
	return sub, nil
}

// Translate renders the cue text of a stored subtitle into target and saves
// the result as a new subtitle with identical timings.
func (s *Service) Translate(ctx context.Context, id, target, source string) (library.Subtitle, error) {
	if s.translator == nil {
		return library.Subtitle{}, fmt.Errorf("translate: %w", upstream.ErrNotConfigured)
	}
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return library.Subtitle{}, invalid("targetLanguage is required")
	}
	if strings.TrimSpace(id) == "" {
		return library.Subtitle{}, invalid("subtitle id is required")
	}

	parent, err := s.lookup(ctx, id)
	if err != nil {
		return library.Subtitle{}, err
	}
	raw, err := s.read(parent)
	if err != nil {
		return library.Subtitle{}, err
	}
	if source == "" {
		source = parent.Language
	}

	blocks := subtitle.Parse(string(raw))
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = strings.Join(b.Text, "\n")
	}
	if len(texts) > 0 {
		translated, err := s.translator.Translate(ctx, texts, source, target)
		if err != nil {
			return library.Subtitle{}, err
		}
		for i := range blocks {
			if lines := cueLines(translated[i]); len(lines) > 0 {
				blocks[i].Text = lines
			}
		}
	}

	stem, ext := splitName(parent.Name)
	sub, err := s.store(ctx, library.Subtitle{
		UploadID:      parent.UploadID,
		Name:          stem + "." + target + ext,
		Language:      target,
		Source:        library.SubtitleTranslated,
		OffsetApplied: parent.OffsetApplied,
		ParentID:      parent.ID,
		CueCount:      len(blocks),
	}, subtitle.Render(blocks))
	if err != nil {
		return library.Subtitle{}, err
	}
	logger := log.WithComponentFromContext(ctx, "captions")
	logger.Info().
		Str(log.FieldSubtitleID, sub.ID).
		Str("parent_id", parent.ID).
		Str("language", target).
		Int(log.FieldCues, len(blocks)).
		Msg("subtitle translated")
	return sub, nil
}

// cueLines splits translated text into non-blank lines; a blank line would
// end the cue.
func cueLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimRight(line, " \t\r"))
		}
	}
	return out
}
