package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Query is one submitted user query.
type Query struct {
	ID         string
	DialogueID string
	Text       string
	Engine     string // empty means server default
	CreatedAt  time.Time
}

// Dialogue summarizes one conversation between resets.
type Dialogue struct {
	ID         string
	StartedAt  time.Time
	UpdatedAt  time.Time
	Turns      int
	FirstQuery string
}

// Turn is one archived transcript entry.
type Turn struct {
	DialogueID  string
	Seq         int
	Role        string // "user" or "assistant"
	Kind        string // outcome kind for assistant turns
	Text        string
	PayloadJSON string
	CreatedAt   time.Time
}
