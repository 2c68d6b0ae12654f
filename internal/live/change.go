// Package live delivers per-user collections to subscribers as full
// snapshots, re-read from the store every time a change is announced.
package live

import (
	"context"
	"time"

	"finze/internal/core"
)

type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Change announces that one document of a user's collection was written.
// Subscribers never apply it as a delta; it only triggers a re-read.
type Change struct {
	UserID     string          `json:"userId"`
	Collection core.Collection `json:"collection"`
	ID         string          `json:"id"`
	Op         Op              `json:"op"`
	At         time.Time       `json:"at"`
}

// Source streams change notifications for one user's collection. The
// returned channel is closed when ctx is done or the source fails.
type Source interface {
	Watch(ctx context.Context, userID string, collection core.Collection) (<-chan Change, error)
}

// Publisher announces writes. Stores that cannot observe their own writes
// (memory, SQLite) are paired with one.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// NewChange stamps a change with the current time.
func NewChange(userID string, collection core.Collection, id string, op Op) Change {
	return Change{
		UserID:     userID,
		Collection: collection,
		ID:         id,
		Op:         op,
		At:         time.Now().UTC(),
	}
}

// Nop discards every change. Used when nothing watches the store.
type Nop struct{}

func (Nop) Publish(context.Context, Change) error { return nil }
