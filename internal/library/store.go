// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cutroom/cutroom/internal/persistence/sqlite"
	"github.com/google/uuid"
)

// Store provides SQLite persistence for the library.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens the database at dbPath and runs migrations.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db, now: time.Now}
	if _, err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var migrations = []sqlite.Migration{
	{
		Name: "initial schema",
		SQL: `
	CREATE TABLE uploads (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL CHECK(kind IN ('local', 'youtube')),
		storage_path TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0,
		download_status TEXT NOT NULL CHECK(download_status IN ('pending', 'downloading', 'completed', 'failed')),
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX idx_playlists_external ON playlists(source, external_id) WHERE external_id != '';

	CREATE TABLE tracks (
		id TEXT PRIMARY KEY,
		playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		upload_id TEXT REFERENCES uploads(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		duration_seconds REAL NOT NULL DEFAULT 0,
		download_status TEXT NOT NULL CHECK(download_status IN ('pending', 'downloading', 'completed', 'failed')),
		created_at TEXT NOT NULL
	);
	CREATE INDEX idx_tracks_playlist ON tracks(playlist_id, position);

	CREATE TABLE segments (
		id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL REFERENCES uploads(id) ON DELETE CASCADE,
		title TEXT NOT NULL DEFAULT '',
		start_seconds REAL NOT NULL CHECK(start_seconds >= 0),
		end_seconds REAL NOT NULL,
		position INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		CHECK(end_seconds > start_seconds)
	);
	CREATE INDEX idx_segments_upload ON segments(upload_id, position);

	CREATE TABLE subtitles (
		id TEXT PRIMARY KEY,
		upload_id TEXT REFERENCES uploads(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL CHECK(source IN ('upload', 'opensubtitles', 'adjusted', 'translated')),
		storage_path TEXT NOT NULL,
		offset_applied REAL NOT NULL DEFAULT 0,
		parent_id TEXT REFERENCES subtitles(id) ON DELETE SET NULL,
		cue_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX idx_subtitles_upload ON subtitles(upload_id);

	CREATE TABLE platform_connections (
		platform TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at TEXT,
		scope TEXT NOT NULL DEFAULT '',
		account_name TEXT NOT NULL DEFAULT '',
		connected_at TEXT NOT NULL,
		last_sync_at TEXT
	);
	`,
	},
}

func newID() string {
	return uuid.NewString()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// requireAffected maps "no rows changed" to ErrNotFound.
func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
