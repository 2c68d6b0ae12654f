package storage

import (
	"context"
	"errors"

	"finze/internal/core"
)

var ErrNotFound = errors.New("document not found")

// Collection is one per-user collection of documents. Every backend
// (memory, SQLite, MongoDB) provides it for each entity type.
type Collection[T core.Document] interface {
	// List returns the full current collection for a user.
	List(ctx context.Context, userID string) ([]T, error)
	// ListAll returns the documents of every user; used by background workers.
	ListAll(ctx context.Context) ([]T, error)
	Get(ctx context.Context, userID, id string) (T, error)
	// Put creates or replaces the document identified by its user and ID.
	Put(ctx context.Context, doc T) error
	Delete(ctx context.Context, userID, id string) error
}

// CategoryLister returns the canonical category list offered in pickers.
type CategoryLister interface {
	ListCategories(ctx context.Context) ([]string, error)
}

// Store bundles the collections of one backend.
type Store struct {
	Transactions Collection[core.Transaction]
	Budgets      Collection[core.Budget]
	Goals        Collection[core.SavingsGoal]
	Recurrences  Collection[core.Recurrence]
	Suggestions  Collection[core.Suggestion]
	Corrections  Collection[core.Correction]
	Categories   CategoryLister
}

// DefaultCategories is offered when the backend carries no category list.
var DefaultCategories = []string{
	"Food & Dining",
	"Groceries",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Technology",
	"Bills & Utilities",
	"Healthcare",
	"Education",
	"Travel",
	"Personal Care",
	"Housing",
	"Income",
	"Other",
}
