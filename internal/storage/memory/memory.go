package memory

import (
	"context"
	"fmt"
	"sync"

	"finze/internal/core"
	"finze/internal/storage"
)

// Collection keeps documents in insertion order per user.
type Collection[T core.Document] struct {
	mu    sync.RWMutex
	docs  map[string]map[string]T
	order map[string][]string
}

func NewCollection[T core.Document]() *Collection[T] {
	return &Collection[T]{
		docs:  make(map[string]map[string]T),
		order: make(map[string][]string),
	}
}

func (c *Collection[T]) List(_ context.Context, userID string) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.order[userID]
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.docs[userID][id])
	}
	return out, nil
}

func (c *Collection[T]) ListAll(ctx context.Context) ([]T, error) {
	c.mu.RLock()
	users := make([]string, 0, len(c.order))
	for u := range c.order {
		users = append(users, u)
	}
	c.mu.RUnlock()

	var out []T
	for _, u := range users {
		docs, _ := c.List(ctx, u)
		out = append(out, docs...)
	}
	return out, nil
}

func (c *Collection[T]) Get(_ context.Context, userID, id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[userID][id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s/%s: %w", userID, id, storage.ErrNotFound)
	}
	return doc, nil
}

func (c *Collection[T]) Put(_ context.Context, doc T) error {
	userID, id := doc.GetUserID(), doc.GetID()
	if userID == "" || id == "" {
		return fmt.Errorf("put document: missing user or id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.docs[userID] == nil {
		c.docs[userID] = make(map[string]T)
	}
	if _, exists := c.docs[userID][id]; !exists {
		c.order[userID] = append(c.order[userID], id)
	}
	c.docs[userID][id] = doc
	return nil
}

func (c *Collection[T]) Delete(_ context.Context, userID, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[userID][id]; !ok {
		return fmt.Errorf("%s/%s: %w", userID, id, storage.ErrNotFound)
	}
	delete(c.docs[userID], id)
	ids := c.order[userID]
	for i, v := range ids {
		if v == id {
			c.order[userID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

type categories []string

func (c categories) ListCategories(context.Context) ([]string, error) {
	return append([]string(nil), c...), nil
}

// NewStore returns an empty in-memory store offering the given categories.
func NewStore(cats []string) *storage.Store {
	cats = dedupe(cats)
	if len(cats) == 0 {
		cats = storage.DefaultCategories
	}
	return &storage.Store{
		Transactions: NewCollection[core.Transaction](),
		Budgets:      NewCollection[core.Budget](),
		Goals:        NewCollection[core.SavingsGoal](),
		Recurrences:  NewCollection[core.Recurrence](),
		Suggestions:  NewCollection[core.Suggestion](),
		Corrections:  NewCollection[core.Correction](),
		Categories:   categories(cats),
	}
}
