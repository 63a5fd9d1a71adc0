// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const uploadColumns = `id, title, source_url, kind, storage_path, mime_type, size_bytes,
	duration_seconds, download_status, error, created_at, updated_at`

// CreateUpload inserts u, assigning ID and timestamps when they are empty.
func (s *Store) CreateUpload(ctx context.Context, u Upload) (Upload, error) {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.Kind == "" {
		u.Kind = KindLocal
	}
	if u.DownloadStatus == "" {
		u.DownloadStatus = StatusPending
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO uploads (`+uploadColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Title, u.SourceURL, string(u.Kind), u.StoragePath, u.MimeType, u.SizeBytes,
		u.DurationSeconds, u.DownloadStatus.String(), u.Error, formatTime(now), formatTime(now))
	if err != nil {
		return Upload{}, fmt.Errorf("insert upload: %w", err)
	}
	return u, nil
}

func scanUpload(row rowScanner) (Upload, error) {
	var u Upload
	var kind, status, created, updated string
	err := row.Scan(&u.ID, &u.Title, &u.SourceURL, &kind, &u.StoragePath, &u.MimeType,
		&u.SizeBytes, &u.DurationSeconds, &status, &u.Error, &created, &updated)
	if err != nil {
		return Upload{}, err
	}
	u.Kind = UploadKind(kind)
	u.DownloadStatus = DownloadStatus(status)
	u.CreatedAt = parseTime(created)
	u.UpdatedAt = parseTime(updated)
	return u, nil
}

// GetUpload returns one upload or ErrNotFound.
func (s *Store) GetUpload(ctx context.Context, id string) (Upload, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id)
	u, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Upload{}, ErrNotFound
	}
	return u, err
}

// ListUploads returns uploads newest first.
func (s *Store) ListUploads(ctx context.Context) ([]Upload, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+uploadColumns+` FROM uploads ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	uploads := []Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// StatusUpdate carries the fields a download worker changes on an upload.
type StatusUpdate struct {
	Status          DownloadStatus
	Error           string
	StoragePath     string
	MimeType        string
	Title           string
	SizeBytes       int64
	DurationSeconds float64
}

// UpdateUploadStatus applies a status transition. Empty string and zero
// numeric fields leave the stored value unchanged.
func (s *Store) UpdateUploadStatus(ctx context.Context, id string, upd StatusUpdate) error {
	if !upd.Status.Valid() {
		return fmt.Errorf("invalid download status %q", upd.Status)
	}
	res, err := s.db.ExecContext(ctx, `
	UPDATE uploads SET
		download_status = ?,
		error = ?,
		storage_path = CASE WHEN ? != '' THEN ? ELSE storage_path END,
		mime_type = CASE WHEN ? != '' THEN ? ELSE mime_type END,
		title = CASE WHEN ? != '' THEN ? ELSE title END,
		size_bytes = CASE WHEN ? > 0 THEN ? ELSE size_bytes END,
		duration_seconds = CASE WHEN ? > 0 THEN ? ELSE duration_seconds END,
		updated_at = ?
	WHERE id = ?`,
		upd.Status.String(), upd.Error,
		upd.StoragePath, upd.StoragePath,
		upd.MimeType, upd.MimeType,
		upd.Title, upd.Title,
		upd.SizeBytes, upd.SizeBytes,
		upd.DurationSeconds, upd.DurationSeconds,
		formatTime(s.now()), id)
	return requireAffected(res, err)
}

// DeleteUpload removes the upload and, through foreign keys, its segments and subtitles.
func (s *Store) DeleteUpload(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = ?`, id)
	return requireAffected(res, err)
}
