package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finze/internal/core"
	"finze/internal/live"
	"finze/internal/storage"
)

// LoadState reads the five dashboard collections of a user concurrently.
func LoadState(ctx context.Context, store *storage.Store, userID string) (State, error) {
	var st State
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Transactions, err = store.Transactions.List(ctx, userID)
		return wrapLoad(core.CollectionTransactions, err)
	})
	g.Go(func() (err error) {
		st.Budgets, err = store.Budgets.List(ctx, userID)
		return wrapLoad(core.CollectionBudgets, err)
	})
	g.Go(func() (err error) {
		st.Goals, err = store.Goals.List(ctx, userID)
		return wrapLoad(core.CollectionGoals, err)
	})
	g.Go(func() (err error) {
		st.Recurrences, err = store.Recurrences.List(ctx, userID)
		return wrapLoad(core.CollectionRecurrences, err)
	})
	g.Go(func() (err error) {
		st.Suggestions, err = store.Suggestions.List(ctx, userID)
		return wrapLoad(core.CollectionSuggestions, err)
	})
	if err := g.Wait(); err != nil {
		return State{}, err
	}
	return st, nil
}

func wrapLoad(coll core.Collection, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", coll, err)
	}
	return nil
}

// Dashboard holds each collection independently and recomputes the snapshot
// from whatever is currently held whenever any one of them is replaced.
// There is no ordering between collections: a fresh transaction list may be
// combined with a stale budget list until the budgets arrive.
type Dashboard struct {
	userID   string
	now      func() time.Time
	onChange func(core.Snapshot)

	mu    sync.Mutex
	state State
	snap  core.Snapshot
}

func NewDashboard(userID string, onChange func(core.Snapshot)) *Dashboard {
	d := &Dashboard{userID: userID, now: time.Now, onChange: onChange}
	d.snap = BuildSnapshot(userID, State{}, d.now())
	return d
}

func (d *Dashboard) SetTransactions(v []core.Transaction) {
	d.update(func(st *State) { st.Transactions = v })
}

func (d *Dashboard) SetBudgets(v []core.Budget) {
	d.update(func(st *State) { st.Budgets = v })
}

func (d *Dashboard) SetGoals(v []core.SavingsGoal) {
	d.update(func(st *State) { st.Goals = v })
}

func (d *Dashboard) SetRecurrences(v []core.Recurrence) {
	d.update(func(st *State) { st.Recurrences = v })
}

func (d *Dashboard) SetSuggestions(v []core.Suggestion) {
	d.update(func(st *State) { st.Suggestions = v })
}

func (d *Dashboard) update(apply func(*State)) {
	d.mu.Lock()
	apply(&d.state)
	snap := BuildSnapshot(d.userID, d.state, d.now())
	d.snap = snap
	d.mu.Unlock()

	if d.onChange != nil {
		d.onChange(snap)
	}
}

// Snapshot returns the most recently computed figures.
func (d *Dashboard) Snapshot() core.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

// Bind subscribes the dashboard to all five collections and returns the
// session holding their handles. Closing the session stops every feed.
func (d *Dashboard) Bind(ctx context.Context, src live.Source, store *storage.Store) *live.Session {
	s := &live.Session{}
	s.Add(live.Subscribe(ctx, src, store.Transactions, core.CollectionTransactions, d.userID, d.SetTransactions))
	s.Add(live.Subscribe(ctx, src, store.Budgets, core.CollectionBudgets, d.userID, d.SetBudgets))
	s.Add(live.Subscribe(ctx, src, store.Goals, core.CollectionGoals, d.userID, d.SetGoals))
	s.Add(live.Subscribe(ctx, src, store.Recurrences, core.CollectionRecurrences, d.userID, d.SetRecurrences))
	s.Add(live.Subscribe(ctx, src, store.Suggestions, core.CollectionSuggestions, d.userID, d.SetSuggestions))
	return s
}
