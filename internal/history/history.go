// Package history stores resume points in a local sqlite database.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"popcorn/internal/media"
)

// ErrNotFound is returned by Get when no entry exists for a path.
var ErrNotFound = errors.New("history entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS history (
	path     TEXT PRIMARY KEY,
	title    TEXT NOT NULL,
	type     TEXT NOT NULL,
	position REAL NOT NULL DEFAULT 0,
	duration REAL NOT NULL DEFAULT 0,
	updated  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS history_updated ON history(updated DESC);
`

// Store is a handle to the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	// One writer; sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing history: %w", err)
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes or updates the entry for e.Path and stamps it with the
// current time.
func (s *Store) Save(e media.HistoryEntry) error {
	if e.Path == "" {
		return errors.New("history entry has no path")
	}
	_, err := s.db.Exec(`
		INSERT INTO history (path, title, type, position, duration, updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			type = excluded.type,
			position = excluded.position,
			duration = excluded.duration,
			updated = excluded.updated`,
		e.Path, e.Title, e.Type.String(), e.Position, e.Duration, s.now().Unix())
	if err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

// Get returns the entry for path, or ErrNotFound.
func (s *Store) Get(path string) (media.HistoryEntry, error) {
	row := s.db.QueryRow(`
		SELECT path, title, type, position, duration, updated
		FROM history WHERE path = ?`, path)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return media.HistoryEntry{}, ErrNotFound
	}
	if err != nil {
		return media.HistoryEntry{}, fmt.Errorf("reading history: %w", err)
	}
	return e, nil
}

// List returns all entries, most recently updated first.
func (s *Store) List() ([]media.HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT path, title, type, position, duration, updated
		FROM history ORDER BY updated DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []media.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove deletes the entry for path. Removing a missing entry is not an
// error.
func (s *Store) Remove(path string) error {
	if _, err := s.db.Exec(`DELETE FROM history WHERE path = ?`, path); err != nil {
		return fmt.Errorf("removing history: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (media.HistoryEntry, error) {
	var (
		e       media.HistoryEntry
		typeStr string
	)
	if err := row.Scan(&e.Path, &e.Title, &typeStr, &e.Position, &e.Duration, &e.Updated); err != nil {
		return media.HistoryEntry{}, err
	}
	// Unknown types from older rows fall back to Other.
	e.Type, _ = media.ParseMediaType(typeStr)
	return e, nil
}

// FormatForDisplay creates one display line per entry.
func FormatForDisplay(entries []media.HistoryEntry) []string {
	var items []string
	for _, e := range entries {
		display := e.Title
		if display == "" {
			display = filepath.Base(e.Path)
		}
		if e.Type == media.Show || e.Type == media.Movie {
			display += fmt.Sprintf(" (%s)", e.Type)
		}
		if e.Position > 0 && e.Duration > 0 {
			pct := (e.Position / e.Duration) * 100
			display += fmt.Sprintf(" [%.0f%%]", pct)
		}
		items = append(items, display)
	}
	return items
}
