// Package capture persists per-frame runtime statistics to SQLite for
// offline analysis. It is an optional sink: the runtime works identically
// with capture disabled, and writing a row is a handful of microseconds on
// the simulation side, outside the core loop.
package capture

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// FrameStats is one captured frame.
type FrameStats struct {
	Session       string
	Frame         uint64
	Commands      uint64 // commands executed by the core loop this frame
	Batches       uint64 // batches played back this frame
	SyncedObjects uint64 // objects staged by the sync pass this frame
	ArenaBytes    int    // bytes staged into the writer generation
	Duration      time.Duration
}

// Store is the capture database handle.
// Uses SQLite with WAL mode; reads may run while a capture is writing.
type Store struct {
	db *sql.DB
}

// Open creates or opens a capture database at the given path and applies
// the schema. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open capture db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect capture db: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply capture schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordFrame inserts one frame row.
func (s *Store) RecordFrame(ctx context.Context, fs FrameStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO frames (session, frame, commands, batches, synced_objects, arena_bytes, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fs.Session, fs.Frame, fs.Commands, fs.Batches, fs.SyncedObjects,
		fs.ArenaBytes, fs.Duration.Microseconds())
	if err != nil {
		return fmt.Errorf("record frame %d: %w", fs.Frame, err)
	}
	return nil
}

// Sessions lists captured session tokens, oldest first. UUIDv7 tokens
// sort by creation time, so lexicographic order is chronological.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT session FROM frames ORDER BY session`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}

// ListFrames returns a session's frames in frame order.
func (s *Store) ListFrames(ctx context.Context, session string) ([]FrameStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, commands, batches, synced_objects, arena_bytes, duration_us
		FROM frames WHERE session = ? ORDER BY frame`, session)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var out []FrameStats
	for rows.Next() {
		fs := FrameStats{Session: session}
		var durUS int64
		if err := rows.Scan(&fs.Frame, &fs.Commands, &fs.Batches,
			&fs.SyncedObjects, &fs.ArenaBytes, &durUS); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		fs.Duration = time.Duration(durUS) * time.Microsecond
		out = append(out, fs)
	}
	return out, rows.Err()
}
