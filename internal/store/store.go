// Package store persists server settings across restarts, grounded on
// bken's internal/store/store.go sqlite-open-and-migrate pattern.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store persists session-server settings in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS last_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	track_url TEXT NOT NULL DEFAULT '',
	position_ms INTEGER NOT NULL DEFAULT 0,
	is_playing INTEGER NOT NULL DEFAULT 0,
	updated_at_unix_ms INTEGER NOT NULL DEFAULT 0
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}
	return nil
}

// GetSetting reads a string setting, returning ok=false if unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

// PutSetting upserts a string setting.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value
`, key, value)
	if err != nil {
		return fmt.Errorf("put setting %q: %w", key, err)
	}
	return nil
}

// LastState is the most recently persisted playback state, restored on
// server startup so a restart doesn't forget what was playing.
type LastState struct {
	TrackURL    string
	PositionMs  uint64
	IsPlaying   bool
	UpdatedAtMs int64
}

// SaveLastState upserts the single row of persisted playback state.
func (s *Store) SaveLastState(ctx context.Context, st LastState) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO last_state (id, track_url, position_ms, is_playing, updated_at_unix_ms)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	track_url = excluded.track_url,
	position_ms = excluded.position_ms,
	is_playing = excluded.is_playing,
	updated_at_unix_ms = excluded.updated_at_unix_ms
`, st.TrackURL, st.PositionMs, boolToInt(st.IsPlaying), st.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("save last state: %w", err)
	}
	return nil
}

// LoadLastState reads back the persisted playback state, ok=false if none
// has ever been saved.
func (s *Store) LoadLastState(ctx context.Context) (LastState, bool, error) {
	var st LastState
	var playing int
	err := s.db.QueryRowContext(ctx, `
SELECT track_url, position_ms, is_playing, updated_at_unix_ms FROM last_state WHERE id = 1
`).Scan(&st.TrackURL, &st.PositionMs, &playing, &st.UpdatedAtMs)
	if err == sql.ErrNoRows {
		return LastState{}, false, nil
	}
	if err != nil {
		return LastState{}, false, fmt.Errorf("load last state: %w", err)
	}
	st.IsPlaying = playing != 0
	return st, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
