package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when a catalog kind was never stored.
var ErrNoSnapshot = errors.New("no snapshot stored")

type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS catalog_snapshots (
  kind       TEXT PRIMARY KEY,
  payload    BLOB NOT NULL,
  fetched_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS forecast_runs (
  id         INTEGER PRIMARY KEY,
  session_id TEXT NOT NULL,
  request    TEXT NOT NULL,
  result     TEXT NOT NULL,
  presets    INTEGER NOT NULL DEFAULT 0,
  geos       INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_session ON forecast_runs(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_runs_time ON forecast_runs(created_at);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveSnapshot replaces the stored payload of a catalog kind.
func (d *DB) SaveSnapshot(ctx context.Context, kind string, payload []byte) error {
	if kind == "" {
		return errors.New("snapshot kind is required")
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO catalog_snapshots(kind, payload, fetched_at) VALUES(?,?,?)
ON CONFLICT(kind) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		kind, payload, formatTime(d.now()))
	if err != nil {
		return fmt.Errorf("saving %s snapshot: %w", kind, err)
	}
	return nil
}

// LoadSnapshot returns the stored payload of a catalog kind and when it was fetched.
func (d *DB) LoadSnapshot(ctx context.Context, kind string) ([]byte, time.Time, error) {
	var (
		payload   []byte
		fetchedAt string
	)
	err := d.sql.QueryRowContext(ctx, "SELECT payload, fetched_at FROM catalog_snapshots WHERE kind = ?", kind).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return payload, parseTime(fetchedAt), nil
}

// ListSnapshots describes every stored catalog kind.
func (d *DB) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT kind, length(payload), fetched_at FROM catalog_snapshots ORDER BY kind")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var fetchedAt string
		if err := rows.Scan(&s.Kind, &s.Size, &fetchedAt); err != nil {
			return nil, err
		}
		s.FetchedAt = parseTime(fetchedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// timeLayout is fixed width so stored stamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts our own RFC3339 stamps as well as SQLite CURRENT_TIMESTAMP.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
