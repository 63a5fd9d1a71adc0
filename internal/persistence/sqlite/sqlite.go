// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sqlite opens SQLite pools with the pragmas every store relies on and
// applies ordered schema migrations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the configuration used by the service.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 8,
	}
}

// Open initializes a SQLite connection pool. WAL mode, busy_timeout and
// foreign keys are set through the DSN so they apply to every pooled connection.
func Open(dbPath string, cfg Config) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return db, nil
}

// Migration is one schema step. Steps are applied in slice order and tracked
// with PRAGMA user_version, so existing steps must never be reordered.
type Migration struct {
	Name string
	SQL  string
}

// Migrate applies every migration newer than the database's user_version.
// It returns the resulting schema version.
func Migrate(ctx context.Context, db *sql.DB, steps []Migration) (int, error) {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return 0, fmt.Errorf("sqlite: read user_version: %w", err)
	}
	if current > len(steps) {
		return current, fmt.Errorf("sqlite: database schema version %d is newer than this binary (%d)", current, len(steps))
	}

	for i := current; i < len(steps); i++ {
		step := steps[i]
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return i, fmt.Errorf("sqlite: begin migration %q: %w", step.Name, err)
		}
		if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
			_ = tx.Rollback()
			return i, fmt.Errorf("sqlite: migration %q: %w", step.Name, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return i, fmt.Errorf("sqlite: bump user_version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return i, fmt.Errorf("sqlite: commit migration %q: %w", step.Name, err)
		}
	}
	return len(steps), nil
}
