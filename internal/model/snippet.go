package model

// Snippet is a stored, named piece of SQL
type Snippet struct {
	ID          int64
	Name        string
	Description string
	Content     string
}
