// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertConnection stores tokens for c.Platform, replacing any previous connection.
func (s *Store) UpsertConnection(ctx context.Context, c Connection) (Connection, error) {
	if c.ConnectedAt.IsZero() {
		c.ConnectedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO platform_connections (platform, access_token, refresh_token, expires_at, scope,
		account_name, connected_at, last_sync_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(platform) DO UPDATE SET
		access_token = excluded.access_token,
		refresh_token = CASE WHEN excluded.refresh_token != '' THEN excluded.refresh_token ELSE refresh_token END,
		expires_at = excluded.expires_at,
		scope = excluded.scope,
		account_name = CASE WHEN excluded.account_name != '' THEN excluded.account_name ELSE account_name END,
		connected_at = excluded.connected_at`,
		string(c.Platform), c.AccessToken, c.RefreshToken, formatNullTime(c.ExpiresAt), c.Scope,
		c.AccountName, formatTime(c.ConnectedAt), formatNullTime(c.LastSyncAt))
	if err != nil {
		return Connection{}, fmt.Errorf("upsert connection: %w", err)
	}
	return s.GetConnection(ctx, c.Platform)
}

const connectionColumns = `platform, access_token, refresh_token, expires_at, scope,
	account_name, connected_at, last_sync_at`

func scanConnection(row rowScanner) (Connection, error) {
	var c Connection
	var platform, connected string
	var expires, lastSync sql.NullString
	if err := row.Scan(&platform, &c.AccessToken, &c.RefreshToken, &expires, &c.Scope,
		&c.AccountName, &connected, &lastSync); err != nil {
		return Connection{}, err
	}
	c.Platform = Platform(platform)
	c.ExpiresAt = parseNullTime(expires)
	c.ConnectedAt = parseTime(connected)
	c.LastSyncAt = parseNullTime(lastSync)
	return c, nil
}

// GetConnection returns the connection for a platform or ErrNotFound.
func (s *Store) GetConnection(ctx context.Context, p Platform) (Connection, error) {
	c, err := scanConnection(s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections WHERE platform = ?`, string(p)))
	if errors.Is(err, sql.ErrNoRows) {
		return Connection{}, ErrNotFound
	}
	return c, err
}

// ListConnections returns every connected platform.
func (s *Store) ListConnections(ctx context.Context) ([]Connection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM platform_connections ORDER BY platform`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConnection disconnects a platform.
func (s *Store) DeleteConnection(ctx context.Context, p Platform) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM platform_connections WHERE platform = ?`, string(p))
	return requireAffected(res, err)
}

// MarkSynced records the time of the last successful playlist sync.
func (s *Store) MarkSynced(ctx context.Context, p Platform) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE platform_connections SET last_sync_at = ? WHERE platform = ?`, formatTime(s.now()), string(p))
	return requireAffected(res, err)
}
