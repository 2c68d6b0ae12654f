package services

import (
	"context"
	"testing"
	"time"

	"finze/internal/core"
	"finze/internal/live"
	"finze/internal/storage/memory"
)

func TestDashboard_RecomputesFromWhateverIsHeld(t *testing.T) {
	var got []core.Snapshot
	d := NewDashboard("u1", func(s core.Snapshot) { got = append(got, s) })
	d.now = func() time.Time { return june2024 }

	d.SetTransactions([]core.Transaction{
		{Amount: money(150), Type: core.Expense, Category: "Food", Date: "2024-06-05"},
	})
	if len(got[0].Budgets) != 0 || got[0].Monthly.TotalExpenses != money(150) {
		t.Fatalf("unexpected first snapshot %+v", got[0])
	}

	d.SetBudgets([]core.Budget{{Category: "Food", Amount: money(100)}})
	if b := got[1].Budgets[0]; b.Band != core.BandOver || b.Spent != money(150) {
		t.Fatalf("budget not combined with held transactions: %+v", b)
	}

	d.SetTransactions(nil)
	if b := d.Snapshot().Budgets[0]; b.Spent.Cents != 0 || b.Band != core.BandOK {
		t.Fatalf("replacement should not merge with previous transactions: %+v", b)
	}
}

func TestDashboard_BindFollowsLiveChanges(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	hub := live.NewHub()
	svc := NewFinanceService(store, hub)

	updates := make(chan core.Snapshot, 64)
	d := NewDashboard("u1", func(s core.Snapshot) { updates <- s })
	session := d.Bind(ctx, hub, store)
	defer session.Close()

	if session.Len() != 5 {
		t.Fatalf("session holds %d subscriptions, want 5", session.Len())
	}

	if _, err := svc.AddTransaction(ctx, core.Transaction{
		UserID: "u1", Amount: money(40), Type: core.Income, Category: "Salary", Title: "Pay",
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-updates:
			if s.Monthly.TotalIncome == money(40) {
				return
			}
		case <-deadline:
			t.Fatalf("dashboard never saw the transaction; last snapshot %+v", d.Snapshot())
		}
	}
}

func TestLoadState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	_ = store.Budgets.Put(ctx, core.Budget{ID: "b", UserID: "u1", Category: "Food", Amount: money(1)})
	_ = store.Goals.Put(ctx, core.SavingsGoal{ID: "g", UserID: "u1", Name: "Car"})

	st, err := LoadState(ctx, store, "u1")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(st.Budgets) != 1 || len(st.Goals) != 1 || len(st.Transactions) != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
}
