package models

import "time"

// Record is the authoritative copy of one synced entity. UpdatedAt is
// assigned server-side on every accepted write and is the only ordering
// signal clients rely on.
type Record struct {
	ID        int64
	UserID    string
	Kind      string
	Fields    map[string]any
	UpdatedAt time.Time

	// ClientKey is the idempotency key presented at creation. Replaying a
	// create with the same key returns this record instead of a new one.
	ClientKey string
}
