// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSegment is returned when a segment's range is empty or negative.
var ErrInvalidSegment = errors.New("library: segment end must be after start and start must not be negative")

func validRange(start, end float64) bool {
	return start >= 0 && end > start
}

// CreateSegment appends a segment to an upload's timeline.
func (s *Store) CreateSegment(ctx context.Context, seg Segment) (Segment, error) {
	if !validRange(seg.Start, seg.End) {
		return Segment{}, ErrInvalidSegment
	}
	if _, err := s.GetUpload(ctx, seg.UploadID); err != nil {
		return Segment{}, err
	}
	if seg.ID == "" {
		seg.ID = newID()
	}
	seg.CreatedAt = s.now()

	err := s.db.QueryRowContext(ctx, `
	INSERT INTO segments (id, upload_id, title, start_seconds, end_seconds, position, created_at)
	VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM segments WHERE upload_id = ?), ?)
	RETURNING position`,
		seg.ID, seg.UploadID, seg.Title, seg.Start, seg.End, seg.UploadID, formatTime(seg.CreatedAt)).Scan(&seg.Position)
	if err != nil {
		return Segment{}, fmt.Errorf("insert segment: %w", err)
	}
	return seg, nil
}

const segmentColumns = `id, upload_id, title, start_seconds, end_seconds, position, created_at`

func scanSegment(row rowScanner) (Segment, error) {
	var seg Segment
	var created string
	if err := row.Scan(&seg.ID, &seg.UploadID, &seg.Title, &seg.Start, &seg.End, &seg.Position, &created); err != nil {
		return Segment{}, err
	}
	seg.CreatedAt = parseTime(created)
	return seg, nil
}

// GetSegment returns one segment or ErrNotFound.
func (s *Store) GetSegment(ctx context.Context, id string) (Segment, error) {
	seg, err := scanSegment(s.db.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Segment{}, ErrNotFound
	}
	return seg, err
}

// ListSegments returns an upload's segments in timeline order.
func (s *Store) ListSegments(ctx context.Context, uploadID string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE upload_id = ? ORDER BY position, start_seconds`, uploadID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// GetSegments loads the named segments preserving the order of ids.
// Any unknown id yields ErrNotFound.
func (s *Store) GetSegments(ctx context.Context, ids []string) ([]Segment, error) {
	out := make([]Segment, 0, len(ids))
	for _, id := range ids {
		seg, err := s.GetSegment(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", id, err)
		}
		out = append(out, seg)
	}
	return out, nil
}

// UpdateSegment changes title and range of an existing segment.
func (s *Store) UpdateSegment(ctx context.Context, seg Segment) (Segment, error) {
	if !validRange(seg.Start, seg.End) {
		return Segment{}, ErrInvalidSegment
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE segments SET title = ?, start_seconds = ?, end_seconds = ? WHERE id = ?`,
		seg.Title, seg.Start, seg.End, seg.ID)
	if err := requireAffected(res, err); err != nil {
		return Segment{}, err
	}
	return s.GetSegment(ctx, seg.ID)
}

// DeleteSegment removes one segment.
func (s *Store) DeleteSegment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, id)
	return requireAffected(res, err)
}

// DeleteSegments removes the named segments and returns how many existed.
func (s *Store) DeleteSegments(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
