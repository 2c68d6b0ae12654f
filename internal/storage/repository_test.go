package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finze/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "finze.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteCollection_RoundTripsDocuments(t *testing.T) {
	ctx := context.Background()
	store := newTestRepo(t).Store()

	tx := core.Transaction{
		ID:        "t1",
		UserID:    "u1",
		Amount:    core.Money{Cents: 123456},
		Type:      core.Expense,
		Category:  "Food & Dining",
		Title:     "Dinner",
		Date:      "2024-06-05",
		CreatedAt: time.Date(2024, 6, 5, 20, 0, 0, 0, time.UTC),
	}
	if err := store.Transactions.Put(ctx, tx); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Transactions.Get(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Amount != tx.Amount || got.Category != tx.Category || !got.CreatedAt.Equal(tx.CreatedAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	tx.Title = "Late dinner"
	if err := store.Transactions.Put(ctx, tx); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	list, err := store.Transactions.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Late dinner" {
		t.Fatalf("unexpected list %+v", list)
	}

	if err := store.Transactions.Delete(ctx, "u1", "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Transactions.Get(ctx, "u1", "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Transactions.Delete(ctx, "u1", "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing delete, got %v", err)
	}
}

func TestSQLiteCollection_IsolatesCollectionsAndUsers(t *testing.T) {
	ctx := context.Background()
	store := newTestRepo(t).Store()

	_ = store.Budgets.Put(ctx, core.Budget{ID: "x", UserID: "u1", Category: "Food", Amount: core.Money{Cents: 100}})
	_ = store.Budgets.Put(ctx, core.Budget{ID: "y", UserID: "u2", Category: "Food", Amount: core.Money{Cents: 100}})
	_ = store.Goals.Put(ctx, core.SavingsGoal{ID: "x", UserID: "u1", Name: "Bike"})

	budgets, _ := store.Budgets.List(ctx, "u1")
	if len(budgets) != 1 || budgets[0].ID != "x" {
		t.Fatalf("unexpected budgets %+v", budgets)
	}
	all, _ := store.Budgets.ListAll(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 budgets across users, got %d", len(all))
	}
	empty, err := store.Suggestions.List(ctx, "u1")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v (err=%v)", empty, err)
	}
}

func TestSQLiteRepository_ListCategories(t *testing.T) {
	cats, err := newTestRepo(t).ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) == 0 || cats[0] != "Food & Dining" {
		t.Fatalf("unexpected categories %v", cats)
	}
}

func TestSQLiteRepository_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finze.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = repo.Store().Recurrences.Put(context.Background(), core.Recurrence{ID: "r1", UserID: "u1", Title: "Rent"})
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	got, err := repo.Store().Recurrences.Get(context.Background(), "u1", "r1")
	if err != nil || got.Title != "Rent" {
		t.Fatalf("expected persisted recurrence, got %+v (err=%v)", got, err)
	}
}
