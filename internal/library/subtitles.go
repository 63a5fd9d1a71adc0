// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertSubtitle stores subtitle metadata. The document itself lives in blob storage.
func (s *Store) InsertSubtitle(ctx context.Context, sub Subtitle) (Subtitle, error) {
	if sub.ID == "" {
		sub.ID = newID()
	}
	if sub.Source == "" {
		sub.Source = SubtitleUploaded
	}
	sub.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO subtitles (id, upload_id, name, language, source, storage_path,
		offset_applied, parent_id, cue_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, nullString(sub.UploadID), sub.Name, sub.Language, string(sub.Source), sub.StoragePath,
		sub.OffsetApplied, nullString(sub.ParentID), sub.CueCount, formatTime(sub.CreatedAt))
	if err != nil {
		return Subtitle{}, fmt.Errorf("insert subtitle: %w", err)
	}
	return sub, nil
}

const subtitleColumns = `id, upload_id, name, language, source, storage_path,
	offset_applied, parent_id, cue_count, created_at`

func scanSubtitle(row rowScanner) (Subtitle, error) {
	var sub Subtitle
	var uploadID, parentID sql.NullString
	var source, created string
	if err := row.Scan(&sub.ID, &uploadID, &sub.Name, &sub.Language, &source, &sub.StoragePath,
		&sub.OffsetApplied, &parentID, &sub.CueCount, &created); err != nil {
		return Subtitle{}, err
	}
	sub.UploadID = uploadID.String
	sub.ParentID = parentID.String
	sub.Source = SubtitleSource(source)
	sub.CreatedAt = parseTime(created)
	return sub, nil
}

// GetSubtitle returns one subtitle record or ErrNotFound.
func (s *Store) GetSubtitle(ctx context.Context, id string) (Subtitle, error) {
	sub, err := scanSubtitle(s.db.QueryRowContext(ctx, `SELECT `+subtitleColumns+` FROM subtitles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Subtitle{}, ErrNotFound
	}
	return sub, err
}

// ListSubtitles returns the subtitles attached to an upload, oldest first.
func (s *Store) ListSubtitles(ctx context.Context, uploadID string) ([]Subtitle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subtitleColumns+` FROM subtitles WHERE upload_id = ? ORDER BY created_at, id`, uploadID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Subtitle{}
	for rows.Next() {
		sub, err := scanSubtitle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// DeleteSubtitle removes the record. Children keep existing with a cleared parent.
func (s *Store) DeleteSubtitle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subtitles WHERE id = ?`, id)
	return requireAffected(res, err)
}
