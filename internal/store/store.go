package store

import (
	"errors"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// ErrNotFound is returned when a named record does not exist
var ErrNotFound = errors.New("not found")

// Store defines the persistence backend for query history and snippets
type Store interface {
	// AddHistory appends one history entry
	AddHistory(entry model.HistoryEntry) error

	// History lists entries newest-first; limit <= 0 means all
	History(limit int) ([]model.HistoryEntry, error)

	// ClearHistory removes every history entry
	ClearHistory() error

	// AddSnippet stores a new named snippet
	AddSnippet(s model.Snippet) error

	// Snippets lists snippets by name ascending
	Snippets() ([]model.Snippet, error)

	// Snippet retrieves one snippet by name
	Snippet(name string) (*model.Snippet, error)

	// UpdateSnippet replaces the description and content of a named snippet
	UpdateSnippet(s model.Snippet) error

	// DeleteSnippet removes a snippet by name
	DeleteSnippet(name string) error

	// Close releases the backend
	Close() error
}
