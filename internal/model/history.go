package model

import "time"

// HistoryEntry records one dispatched script
type HistoryEntry struct {
	ID        int64
	Script    string
	Origin    string // connection name the run was dispatched under
	CreatedAt time.Time
}
