package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
	"github.com/WarPigBRZ/BelugaDB/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS query_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	script     TEXT NOT NULL,
	origin     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snippets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL
);`

// SQLiteStore implements store.Store on a single SQLite database file
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens the database at path, creating the file and schema when missing.
// Use ":memory:" for an ephemeral store.
func New(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// The driver returns SQLITE_BUSY under concurrent writers; one
	// connection keeps access serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddHistory appends one history entry
func (s *SQLiteStore) AddHistory(entry model.HistoryEntry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO query_history (script, origin, created_at) VALUES (?, ?, ?)`,
		entry.Script, entry.Origin, created.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("add history: %w", err)
	}
	return nil
}

// History lists entries newest-first; limit <= 0 means all
func (s *SQLiteStore) History(limit int) ([]model.HistoryEntry, error) {
	query := `SELECT id, script, origin, created_at FROM query_history ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var created string
		if err := rows.Scan(&e.ID, &e.Script, &e.Origin, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", created, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearHistory removes every history entry
func (s *SQLiteStore) ClearHistory() error {
	if _, err := s.db.Exec(`DELETE FROM query_history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// AddSnippet stores a new named snippet
func (s *SQLiteStore) AddSnippet(snip model.Snippet) error {
	if _, err := s.Snippet(snip.Name); err == nil {
		return fmt.Errorf("snippet %q already exists", snip.Name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err := s.db.Exec(
		`INSERT INTO snippets (name, description, content) VALUES (?, ?, ?)`,
		snip.Name, snip.Description, snip.Content,
	)
	if err != nil {
		return fmt.Errorf("add snippet: %w", err)
	}
	return nil
}

// Snippets lists snippets by name ascending
func (s *SQLiteStore) Snippets() ([]model.Snippet, error) {
	rows, err := s.db.Query(`SELECT id, name, description, content FROM snippets ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []model.Snippet
	for rows.Next() {
		var sn model.Snippet
		if err := rows.Scan(&sn.ID, &sn.Name, &sn.Description, &sn.Content); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		snippets = append(snippets, sn)
	}
	return snippets, rows.Err()
}

// Snippet retrieves one snippet by name
func (s *SQLiteStore) Snippet(name string) (*model.Snippet, error) {
	var sn model.Snippet
	err := s.db.QueryRow(
		`SELECT id, name, description, content FROM snippets WHERE name = ?`, name,
	).Scan(&sn.ID, &sn.Name, &sn.Description, &sn.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snippet %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snippet: %w", err)
	}
	return &sn, nil
}

// UpdateSnippet replaces the description and content of a named snippet
func (s *SQLiteStore) UpdateSnippet(snip model.Snippet) error {
	res, err := s.db.Exec(
		`UPDATE snippets SET description = ?, content = ? WHERE name = ?`,
		snip.Description, snip.Content, snip.Name,
	)
	if err != nil {
		return fmt.Errorf("update snippet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("snippet %q: %w", snip.Name, store.ErrNotFound)
	}
	return nil
}

// DeleteSnippet removes a snippet by name
func (s *SQLiteStore) DeleteSnippet(name string) error {
	res, err := s.db.Exec(`DELETE FROM snippets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("snippet %q: %w", name, store.ErrNotFound)
	}
	return nil
}
