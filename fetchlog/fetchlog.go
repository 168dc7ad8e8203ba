// CLAUDE:SUMMARY SQLite telemetry of fetch attempts: one row per fetch with outcome, timing, size and resulting snapshot.
// CLAUDE:DEPENDS dbopen, idgen, fetch
// CLAUDE:EXPORTS Store, Open, New, Entry, FromResult, Schema
// Package fetchlog keeps per-URL fetch telemetry in SQLite.
package fetchlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/baseline/dbopen"
	"github.com/hazyhaar/baseline/fetch"
	"github.com/hazyhaar/baseline/idgen"
)

// Schema creates the fetch_log table.
const Schema = `
CREATE TABLE IF NOT EXISTS fetch_log (
    id              TEXT PRIMARY KEY,
    url             TEXT NOT NULL,
    outcome         TEXT NOT NULL,
    status_code     INTEGER NOT NULL DEFAULT 0,
    final_url       TEXT NOT NULL DEFAULT '',
    bytes           INTEGER NOT NULL DEFAULT 0,
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    error_message   TEXT NOT NULL DEFAULT '',
    snapshot_id     TEXT NOT NULL DEFAULT '',
    fetched_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_url ON fetch_log(url, fetched_at DESC);
`

// Entry is one fetch attempt. FetchedAt is Unix milliseconds.
type Entry struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Outcome      string `json:"outcome"`
	StatusCode   int    `json:"status_code,omitempty"`
	FinalURL     string `json:"final_url,omitempty"`
	Bytes        int64  `json:"bytes"`
	DurationMs   int64  `json:"duration_ms"`
	ErrorMessage string `json:"error_message,omitempty"`
	SnapshotID   string `json:"snapshot_id,omitempty"`
	FetchedAt    int64  `json:"fetched_at"`
}

// FromResult builds an Entry for a fetch of url.
func FromResult(url string, res *fetch.Result) *Entry {
	return &Entry{
		URL:          url,
		Outcome:      string(res.Outcome),
		StatusCode:   res.StatusCode,
		FinalURL:     res.FinalURL,
		Bytes:        res.Bytes,
		DurationMs:   res.DurationMs,
		ErrorMessage: res.ErrorMessage,
	}
}

// Store writes and queries fetch_log.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// New wraps a database that already has Schema applied.
func New(db *sql.DB) *Store {
	return &Store{DB: db, newID: idgen.Prefixed("fl_", idgen.Default), now: time.Now}
}

// Open opens (or creates) the telemetry database at path.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	opts = append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, opts...)
	db, err := dbopen.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("fetchlog: %w", err)
	}
	return New(db), nil
}

// Close closes the database.
func (s *Store) Close() error { return s.DB.Close() }

// Insert records e, assigning ID and FetchedAt when unset.
func (s *Store) Insert(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.FetchedAt == 0 {
		e.FetchedAt = s.now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO fetch_log (id, url, outcome, status_code, final_url, bytes,
		duration_ms, error_message, snapshot_id, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.URL, e.Outcome, e.StatusCode, e.FinalURL, e.Bytes,
		e.DurationMs, e.ErrorMessage, e.SnapshotID, e.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("fetchlog: insert: %w", err)
	}
	return nil
}

const selectCols = `SELECT id, url, outcome, status_code, final_url, bytes,
	duration_ms, error_message, snapshot_id, fetched_at FROM fetch_log`

// History returns attempts for url, newest first. limit <= 0 means 50.
func (s *Store) History(ctx context.Context, url string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		selectCols+` WHERE url = ? ORDER BY fetched_at DESC, rowid DESC LIMIT ?`, url, limit)
	if err != nil {
		return nil, fmt.Errorf("fetchlog: history: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastCapture returns the newest attempt for url that produced a snapshot,
// or nil when there is none.
func (s *Store) LastCapture(ctx context.Context, url string) (*Entry, error) {
	row := s.DB.QueryRowContext(ctx,
		selectCols+` WHERE url = ? AND snapshot_id != '' ORDER BY fetched_at DESC, rowid DESC LIMIT 1`, url)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// Stats counts attempts per outcome.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM fetch_log GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("fetchlog: stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("fetchlog: scan stats: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (*Entry, error) {
	var e Entry
	err := r.Scan(&e.ID, &e.URL, &e.Outcome, &e.StatusCode, &e.FinalURL, &e.Bytes,
		&e.DurationMs, &e.ErrorMessage, &e.SnapshotID, &e.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("fetchlog: scan: %w", err)
	}
	return &e, nil
}
