package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"rita/internal/service"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	feature      TEXT NOT NULL,
	id           TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	submitted_at TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (feature, id)
);
CREATE INDEX IF NOT EXISTS entries_submitted ON entries (feature, submitted_at);`

// SQLiteStore keeps the journal in a local sqlite file.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the journal at path.
// ":memory:" gives a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Put inserts or updates an entry.
func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (feature, id, url, status, description, author, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feature, id) DO UPDATE SET
			url = CASE WHEN excluded.url = '' THEN entries.url ELSE excluded.url END,
			status = excluded.status,
			description = CASE WHEN excluded.description = '' THEN entries.description ELSE excluded.description END,
			author = CASE WHEN excluded.author = '' THEN entries.author ELSE excluded.author END,
			updated_at = excluded.updated_at`,
		string(e.Feature), string(e.ID), e.URL, string(e.Status), e.Description, e.Author,
		formatTime(e.SubmittedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return internal("put", err)
	}
	return nil
}

// UpdateStatus sets the status of an existing entry.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, feature Feature, id service.TaskID, status service.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET status = ?, updated_at = ? WHERE feature = ? AND id = ?`,
		string(status), formatTime(time.Now().UTC()), string(feature), string(id))
	if err != nil {
		return internal("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internal("update", err)
	}
	if n == 0 {
		return notFound(feature, id)
	}
	return nil
}

// Get returns one entry.
func (s *SQLiteStore) Get(ctx context.Context, feature Feature, id service.TaskID) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT feature, id, url, status, description, author, submitted_at, updated_at
		FROM entries WHERE feature = ? AND id = ?`, string(feature), string(id))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, notFound(feature, id)
	}
	if err != nil {
		return Entry{}, internal("get", err)
	}
	return e, nil
}

// List returns a feature's entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, feature Feature) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT feature, id, url, status, description, author, submitted_at, updated_at
		FROM entries WHERE feature = ?
		ORDER BY submitted_at DESC, rowid DESC`, string(feature))
	if err != nil {
		return nil, internal("list", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, internal("list", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, internal("list", err)
	}
	return out, nil
}

// Delete removes entries by id.
func (s *SQLiteStore) Delete(ctx context.Context, feature Feature, ids []service.TaskID) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	args := make([]any, 0, len(ids)+1)
	args = append(args, string(feature))
	for _, id := range ids {
		args = append(args, string(id))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE feature = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return internal("delete", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var feature, id, status, submitted, updated string
	if err := sc.Scan(&feature, &id, &e.URL, &status, &e.Description, &e.Author, &submitted, &updated); err != nil {
		return Entry{}, err
	}
	e.Feature = Feature(feature)
	e.ID = service.TaskID(id)
	e.Status = service.Status(status)
	e.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submitted)
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return e, nil
}

// formatTime uses a fixed-width layout so text order matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
