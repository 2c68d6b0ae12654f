package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finze/internal/core"
	"finze/internal/live"
	"finze/internal/storage"
	"finze/internal/storage/memory"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []live.Change
}

func (p *recordingPublisher) Publish(_ context.Context, c live.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

func (p *recordingPublisher) last() live.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changes[len(p.changes)-1]
}

func newTestService(t *testing.T) (*FinanceService, *storage.Store, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore(nil)
	pub := &recordingPublisher{}
	svc := NewFinanceService(store, pub)
	svc.now = func() time.Time { return june2024 }
	return svc, store, pub
}

func TestFinanceService_AddTransaction(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	tx, err := svc.AddTransaction(ctx, core.Transaction{
		UserID:   "u1",
		Amount:   money(12),
		Type:     core.Expense,
		Category: " Food ",
		Title:    "Lunch",
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if tx.ID == "" || tx.Date != "2024-06-20" || tx.Source != "manual" || tx.Category != "Food" {
		t.Fatalf("defaults not applied: %+v", tx)
	}
	if _, err := store.Transactions.Get(ctx, "u1", tx.ID); err != nil {
		t.Fatalf("transaction not stored: %v", err)
	}
	if c := pub.last(); c.Collection != core.CollectionTransactions || c.ID != tx.ID || c.Op != live.OpPut {
		t.Fatalf("unexpected change %+v", c)
	}
}

func TestFinanceService_ValidationNeverWrites(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"negative amount", core.Transaction{UserID: "u1", Amount: money(-1), Type: core.Expense, Category: "Food", Title: "x"}, core.ErrInvalidAmount},
		{"bad type", core.Transaction{UserID: "u1", Amount: money(1), Type: "gift", Category: "Food", Title: "x"}, core.ErrInvalidType},
		{"no category", core.Transaction{UserID: "u1", Amount: money(1), Type: core.Expense, Title: "x"}, core.ErrEmptyCategory},
		{"no user", core.Transaction{Amount: money(1), Type: core.Expense, Category: "Food", Title: "x"}, core.ErrMissingUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddTransaction(ctx, tt.tx)
			if !errors.Is(err, core.ErrValidation) || !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want validation wrapping %v", err, tt.want)
			}
		})
	}

	list, _ := store.Transactions.List(ctx, "u1")
	if len(list) != 0 || len(pub.changes) != 0 {
		t.Fatalf("invalid input reached the store: %d docs, %d changes", len(list), len(pub.changes))
	}
}

func TestFinanceService_BudgetDefaultsAndToggle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreateBudget(ctx, core.Budget{UserID: "u1", Category: "Food", Amount: money(200)})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	if b.Period != core.Monthly || b.AlertThreshold != 80 || !b.IsActive {
		t.Fatalf("defaults not applied: %+v", b)
	}

	b, err = svc.ToggleBudget(ctx, "u1", b.ID)
	if err != nil || b.IsActive {
		t.Fatalf("toggle failed: %+v (err=%v)", b, err)
	}

	if _, err := svc.CreateBudget(ctx, core.Budget{UserID: "u1", Category: "Food", Amount: money(1), Period: core.Daily}); !errors.Is(err, core.ErrInvalidFrequency) {
		t.Fatalf("daily budget accepted: %v", err)
	}
	if _, err := svc.ToggleBudget(ctx, "u1", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFinanceService_AddGoalProgress(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	g, err := svc.CreateGoal(ctx, core.SavingsGoal{
		UserID:       "u1",
		Name:         "Bike",
		TargetAmount: money(100),
		TargetDate:   june2024.AddDate(0, 3, 0),
	})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if g.IsCompleted || g.Priority != core.PriorityMedium {
		t.Fatalf("unexpected new goal %+v", g)
	}

	g, err = svc.AddGoalProgress(ctx, "u1", g.ID, money(100), true)
	if err != nil {
		t.Fatalf("AddGoalProgress: %v", err)
	}
	if !g.IsCompleted {
		t.Fatalf("goal not completed after reaching target: %+v", g)
	}
	stored, _ := store.Goals.Get(ctx, "u1", g.ID)
	if stored.IsCompleted != (stored.CurrentAmount.Cents >= stored.TargetAmount.Cents) {
		t.Fatalf("stored completion flag out of sync: %+v", stored)
	}

	txs, _ := store.Transactions.List(ctx, "u1")
	if len(txs) != 1 || txs[0].Title != "Savings: Bike" || txs[0].Amount != money(100) {
		t.Fatalf("contribution not recorded: %+v", txs)
	}

	if _, err := svc.AddGoalProgress(ctx, "u1", g.ID, core.Money{}, false); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("zero contribution accepted: %v", err)
	}
}

func TestFinanceService_CreateRecurrenceComputesNextDueOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.now = func() time.Time { return time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC) }

	r, err := svc.CreateRecurrence(context.Background(), core.Recurrence{
		UserID:    "u1",
		Title:     "Gym",
		Amount:    money(30),
		Category:  "Healthcare",
		Frequency: core.Monthly,
	})
	if err != nil {
		t.Fatalf("CreateRecurrence: %v", err)
	}
	want := time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)
	if !r.NextDue.Equal(want) || !r.IsActive || r.Type != core.Expense || r.AnchorDay != 31 {
		t.Fatalf("unexpected recurrence %+v", r)
	}

	r, err = svc.ToggleRecurrence(context.Background(), "u1", r.ID)
	if err != nil || r.IsActive || !r.NextDue.Equal(want) {
		t.Fatalf("toggle changed more than isActive: %+v (err=%v)", r, err)
	}
}

func TestFinanceService_SuggestionsAndCorrections(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sg, err := svc.AddSuggestion(ctx, core.Suggestion{UserID: "u1", Title: "Cut dining out"})
	if err != nil {
		t.Fatalf("AddSuggestion: %v", err)
	}
	if err := svc.MarkSuggestionRead(ctx, "u1", sg.ID); err != nil {
		t.Fatalf("MarkSuggestionRead: %v", err)
	}
	snap, err := svc.Snapshot(ctx, "u1")
	if err != nil || snap.UnreadSuggestions != 0 {
		t.Fatalf("suggestion still unread: %+v (err=%v)", snap, err)
	}

	if _, err := svc.RecordCorrection(ctx, core.Correction{UserID: "u1", Description: "Uber Eats", OriginalCategory: "Transportation", CorrectedCategory: "Food & Dining"}); err != nil {
		t.Fatalf("RecordCorrection: %v", err)
	}
	if cat, ok := svc.LearnedCategory(ctx, "u1", "uber eats"); !ok || cat != "Food & Dining" {
		t.Fatalf("LearnedCategory = %q, %v", cat, ok)
	}
	if _, ok := svc.LearnedCategory(ctx, "u2", "uber eats"); ok {
		t.Fatal("corrections leaked across users")
	}
}

func TestFinanceService_Deletes(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	tx, err := svc.AddTransaction(ctx, core.Transaction{UserID: "u1", Amount: money(5), Type: core.Expense, Category: "Food", Title: "Tea"})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	b, err := svc.CreateBudget(ctx, core.Budget{UserID: "u1", Category: "Food", Amount: money(200)})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	g, err := svc.CreateGoal(ctx, core.SavingsGoal{UserID: "u1", Name: "Bike", TargetAmount: money(100), TargetDate: june2024.AddDate(0, 3, 0)})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	r, err := svc.CreateRecurrence(ctx, core.Recurrence{UserID: "u1", Title: "Gym", Amount: money(30), Category: "Healthcare", Frequency: core.Monthly})
	if err != nil {
		t.Fatalf("CreateRecurrence: %v", err)
	}

	tests := []struct {
		name   string
		coll   core.Collection
		id     string
		delete func(ctx context.Context, userID, id string) error
	}{
		{"transaction", core.CollectionTransactions, tx.ID, svc.DeleteTransaction},
		{"budget", core.CollectionBudgets, b.ID, svc.DeleteBudget},
		{"goal", core.CollectionGoals, g.ID, svc.DeleteGoal},
		{"recurrence", core.CollectionRecurrences, r.ID, svc.DeleteRecurrence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.delete(ctx, "u2", tt.id); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("another user's delete: expected ErrNotFound, got %v", err)
			}
			if err := tt.delete(ctx, "u1", tt.id); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if c := pub.last(); c.Collection != tt.coll || c.ID != tt.id || c.Op != live.OpDelete {
				t.Fatalf("unexpected change %+v", c)
			}
			if err := tt.delete(ctx, "u1", tt.id); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("second delete: expected ErrNotFound, got %v", err)
			}
		})
	}
}
