// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreatePlaylist inserts p. When p carries a source and external id that
// already exist, the existing row is updated and returned instead.
func (s *Store) CreatePlaylist(ctx context.Context, p Playlist) (Playlist, error) {
	if p.Source == "" {
		p.Source = SourceLocal
	}
	now := s.now()

	if p.ExternalID != "" {
		existing, err := s.playlistByExternal(ctx, p.Source, p.ExternalID)
		switch {
		case err == nil:
			_, err = s.db.ExecContext(ctx,
				`UPDATE playlists SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
				p.Name, p.Description, formatTime(now), existing.ID)
			if err != nil {
				return Playlist{}, fmt.Errorf("update playlist: %w", err)
			}
			existing.Name, existing.Description, existing.UpdatedAt = p.Name, p.Description, now
			return existing, nil
		case !errors.Is(err, ErrNotFound):
			return Playlist{}, err
		}
	}

	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO playlists (id, name, description, source, external_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, string(p.Source), p.ExternalID, formatTime(now), formatTime(now))
	if err != nil {
		return Playlist{}, fmt.Errorf("insert playlist: %w", err)
	}
	return p, nil
}

const playlistSelect = `
	SELECT p.id, p.name, p.description, p.source, p.external_id, p.created_at, p.updated_at,
		(SELECT COUNT(*) FROM tracks t WHERE t.playlist_id = p.id)
	FROM playlists p`

func scanPlaylist(row rowScanner) (Playlist, error) {
	var p Playlist
	var source, created, updated string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &source, &p.ExternalID, &created, &updated, &p.TrackCount); err != nil {
		return Playlist{}, err
	}
	p.Source = PlaylistSource(source)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func (s *Store) playlistByExternal(ctx context.Context, source PlaylistSource, externalID string) (Playlist, error) {
	p, err := scanPlaylist(s.db.QueryRowContext(ctx,
		playlistSelect+` WHERE p.source = ? AND p.external_id = ?`, string(source), externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return Playlist{}, ErrNotFound
	}
	return p, err
}

// GetPlaylist returns one playlist or ErrNotFound.
func (s *Store) GetPlaylist(ctx context.Context, id string) (Playlist, error) {
	p, err := scanPlaylist(s.db.QueryRowContext(ctx, playlistSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Playlist{}, ErrNotFound
	}
	return p, err
}

// ListPlaylists returns every playlist ordered by name.
func (s *Store) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	rows, err := s.db.QueryContext(ctx, playlistSelect+` ORDER BY p.name COLLATE NOCASE, p.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePlaylist removes a playlist and its tracks.
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	return requireAffected(res, err)
}

// AddTracks appends tracks to the end of a playlist in one transaction.
func (s *Store) AddTracks(ctx context.Context, playlistID string, tracks []Track) ([]Track, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlists WHERE id = ?`, playlistID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM tracks WHERE playlist_id = ?`, playlistID).Scan(&next); err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			t.ID = newID()
		}
		if t.DownloadStatus == "" {
			t.DownloadStatus = StatusPending
		}
		t.PlaylistID = playlistID
		t.Position = next
		t.CreatedAt = now
		next++

		_, err := tx.ExecContext(ctx, `
		INSERT INTO tracks (id, playlist_id, upload_id, title, artist, external_id, source_url,
			position, duration_seconds, download_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.PlaylistID, nullString(t.UploadID), t.Title, t.Artist, t.ExternalID, t.SourceURL,
			t.Position, t.DurationSeconds, t.DownloadStatus.String(), formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("insert track: %w", err)
		}
		out = append(out, t)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`, formatTime(now), playlistID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTracks returns a playlist's tracks in position order.
func (s *Store) ListTracks(ctx context.Context, playlistID string) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, playlist_id, upload_id, title, artist, external_id, source_url,
		position, duration_seconds, download_status, created_at
	FROM tracks WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Track{}
	for rows.Next() {
		var t Track
		var uploadID sql.NullString
		var status, created string
		if err := rows.Scan(&t.ID, &t.PlaylistID, &uploadID, &t.Title, &t.Artist, &t.ExternalID,
			&t.SourceURL, &t.Position, &t.DurationSeconds, &status, &created); err != nil {
			return nil, err
		}
		t.UploadID = uploadID.String
		t.DownloadStatus = DownloadStatus(status)
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ErrInvalidOrder is returned when a reorder request does not name every track once.
var ErrInvalidOrder = errors.New("library: invalid track order")

// ReorderTracks rewrites positions so trackIDs appear in the given order.
// trackIDs must name every track of the playlist exactly once.
func (s *Store) ReorderTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE playlist_id = ?`, playlistID).Scan(&count); err != nil {
		return err
	}
	if count != len(trackIDs) {
		return fmt.Errorf("%w: got %d track ids, playlist has %d", ErrInvalidOrder, len(trackIDs), count)
	}

	seen := make(map[string]struct{}, len(trackIDs))
	for pos, id := range trackIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate track id %q", ErrInvalidOrder, id)
		}
		seen[id] = struct{}{}
		res, err := tx.ExecContext(ctx,
			`UPDATE tracks SET position = ? WHERE id = ? AND playlist_id = ?`, pos, id, playlistID)
		if err := requireAffected(res, err); err != nil {
			return fmt.Errorf("reorder track %q: %w", id, err)
		}
	}
	return tx.Commit()
}

// UpdateTrackStatus records download progress for a track and optionally links the upload.
func (s *Store) UpdateTrackStatus(ctx context.Context, trackID string, status DownloadStatus, uploadID string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid download status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
	UPDATE tracks SET download_status = ?, upload_id = COALESCE(?, upload_id) WHERE id = ?`,
		status.String(), nullString(uploadID), trackID)
	return requireAffected(res, err)
}
