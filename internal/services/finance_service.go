package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"finze/internal/core"
	"finze/internal/live"
	"finze/internal/storage"
)

// FinanceService performs validated single-document writes and announces
// each one to the live publisher. No write spans more than one document
// atomically.
type FinanceService struct {
	store     *storage.Store
	publisher live.Publisher
	now       func() time.Time
}

func NewFinanceService(store *storage.Store, publisher live.Publisher) *FinanceService {
	if publisher == nil {
		publisher = live.Nop{}
	}
	return &FinanceService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", core.ErrValidation, err)
}

func newID() string {
	return uuid.NewString()
}

// announce publishes a change. A failed publish only delays live subscribers
// until the next write, so it is logged and not returned.
func (s *FinanceService) announce(ctx context.Context, userID string, coll core.Collection, id string, op live.Op) {
	if err := s.publisher.Publish(ctx, live.NewChange(userID, coll, id, op)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change",
			"collection", coll,
			"user_id", userID,
			"id", id,
			"error", err)
	}
}

// AddTransaction stores a new transaction. Date defaults to today.
func (s *FinanceService) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	now := s.now()
	tx.ID = newID()
	tx.Category = strings.TrimSpace(tx.Category)
	tx.Title = strings.TrimSpace(tx.Title)
	if tx.Title == "" {
		tx.Title = strings.TrimSpace(tx.Description)
	}
	if tx.Date == "" {
		tx.Date = now.Format("2006-01-02")
	}
	if tx.Source == "" {
		tx.Source = "manual"
	}
	tx.CreatedAt = now.UTC()

	if err := tx.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	if err := s.store.Transactions.Put(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.announce(ctx, tx.UserID, core.CollectionTransactions, tx.ID, live.OpPut)

	slog.InfoContext(ctx, "Transaction created",
		"user_id", tx.UserID,
		"type", tx.Type,
		"category", tx.Category,
		"amount_cents", tx.Amount.Cents)
	return tx, nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := s.store.Transactions.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.announce(ctx, userID, core.CollectionTransactions, id, live.OpDelete)
	return nil
}

// CreateBudget stores an active budget; period defaults to monthly and the
// alert threshold to 80.
func (s *FinanceService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.ID = newID()
	b.Category = strings.TrimSpace(b.Category)
	if b.Period == "" {
		b.Period = core.Monthly
	}
	if b.AlertThreshold == 0 {
		b.AlertThreshold = core.DefaultAlertThreshold
	}
	b.IsActive = true

	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}
	if err := s.store.Budgets.Put(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	s.announce(ctx, b.UserID, core.CollectionBudgets, b.ID, live.OpPut)
	return b, nil
}

// ToggleBudget flips isActive.
func (s *FinanceService) ToggleBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	b, err := s.store.Budgets.Get(ctx, userID, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	b.IsActive = !b.IsActive
	if err := s.store.Budgets.Put(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	s.announce(ctx, userID, core.CollectionBudgets, id, live.OpPut)
	return b, nil
}

func (s *FinanceService) DeleteBudget(ctx context.Context, userID, id string) error {
	if err := s.store.Budgets.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	s.announce(ctx, userID, core.CollectionBudgets, id, live.OpDelete)
	return nil
}

func (s *FinanceService) CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	g.ID = newID()
	g.Name = strings.TrimSpace(g.Name)
	if g.Priority == "" {
		g.Priority = core.PriorityMedium
	}
	g.Refresh()

	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, invalid(err)
	}
	if err := s.store.Goals.Put(ctx, g); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("save goal: %w", err)
	}
	s.announce(ctx, g.UserID, core.CollectionGoals, g.ID, live.OpPut)
	return g, nil
}

// AddGoalProgress applies a contribution (negative to withdraw). When
// record is set a contributing expense transaction is written afterwards
// as a separate write; if that second write fails the goal keeps its new
// amount.
func (s *FinanceService) AddGoalProgress(ctx context.Context, userID, id string, delta core.Money, record bool) (core.SavingsGoal, error) {
	if delta.Cents == 0 {
		return core.SavingsGoal{}, invalid(core.ErrInvalidAmount)
	}
	g, err := s.store.Goals.Get(ctx, userID, id)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("get goal: %w", err)
	}

	g = UpdateProgress(g, delta)
	if err := s.store.Goals.Put(ctx, g); err != nil {
		return core.SavingsGoal{}, fmt.Errorf("save goal: %w", err)
	}
	s.announce(ctx, userID, core.CollectionGoals, id, live.OpPut)

	if record && delta.Cents > 0 {
		category := g.Category
		if category == "" {
			category = "Savings"
		}
		_, err := s.AddTransaction(ctx, core.Transaction{
			UserID:   userID,
			Amount:   delta,
			Type:     core.Expense,
			Category: category,
			Title:    "Savings: " + g.Name,
			Source:   "goal",
		})
		if err != nil {
			return g, fmt.Errorf("record contribution: %w", err)
		}
	}
	return g, nil
}

func (s *FinanceService) DeleteGoal(ctx context.Context, userID, id string) error {
	if err := s.store.Goals.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	s.announce(ctx, userID, core.CollectionGoals, id, live.OpDelete)
	return nil
}

// CreateRecurrence computes nextDue once, from now.
func (s *FinanceService) CreateRecurrence(ctx context.Context, r core.Recurrence) (core.Recurrence, error) {
	r.ID = newID()
	r.Title = strings.TrimSpace(r.Title)
	if r.Type == "" {
		r.Type = core.Expense
	}
	r.IsActive = true

	if err := r.Validate(); err != nil {
		return core.Recurrence{}, invalid(err)
	}
	now := s.now().UTC()
	next, err := NextDue(now, r.Frequency)
	if err != nil {
		return core.Recurrence{}, invalid(err)
	}
	r.NextDue = next
	r.AnchorDay = 0
	if Anchored(r.Frequency) {
		r.AnchorDay = now.Day()
	}

	if err := s.store.Recurrences.Put(ctx, r); err != nil {
		return core.Recurrence{}, fmt.Errorf("save recurrence: %w", err)
	}
	s.announce(ctx, r.UserID, core.CollectionRecurrences, r.ID, live.OpPut)
	return r, nil
}

// ToggleRecurrence pauses or resumes a recurrence. nextDue is left as is.
func (s *FinanceService) ToggleRecurrence(ctx context.Context, userID, id string) (core.Recurrence, error) {
	r, err := s.store.Recurrences.Get(ctx, userID, id)
	if err != nil {
		return core.Recurrence{}, fmt.Errorf("get recurrence: %w", err)
	}
	r.IsActive = !r.IsActive
	if err := s.store.Recurrences.Put(ctx, r); err != nil {
		return core.Recurrence{}, fmt.Errorf("save recurrence: %w", err)
	}
	s.announce(ctx, userID, core.CollectionRecurrences, id, live.OpPut)
	return r, nil
}

func (s *FinanceService) DeleteRecurrence(ctx context.Context, userID, id string) error {
	if err := s.store.Recurrences.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete recurrence: %w", err)
	}
	s.announce(ctx, userID, core.CollectionRecurrences, id, live.OpDelete)
	return nil
}

// AddSuggestion stores an unread suggestion.
func (s *FinanceService) AddSuggestion(ctx context.Context, sg core.Suggestion) (core.Suggestion, error) {
	sg.ID = newID()
	sg.IsRead = false
	sg.CreatedAt = s.now().UTC()
	if strings.TrimSpace(sg.UserID) == "" {
		return core.Suggestion{}, invalid(core.ErrMissingUser)
	}
	if strings.TrimSpace(sg.Title) == "" {
		return core.Suggestion{}, invalid(core.ErrEmptyTitle)
	}
	if sg.Priority == "" {
		sg.Priority = core.PriorityMedium
	}
	if err := s.store.Suggestions.Put(ctx, sg); err != nil {
		return core.Suggestion{}, fmt.Errorf("save suggestion: %w", err)
	}
	s.announce(ctx, sg.UserID, core.CollectionSuggestions, sg.ID, live.OpPut)
	return sg, nil
}

func (s *FinanceService) MarkSuggestionRead(ctx context.Context, userID, id string) error {
	sg, err := s.store.Suggestions.Get(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("get suggestion: %w", err)
	}
	if sg.IsRead {
		return nil
	}
	sg.IsRead = true
	if err := s.store.Suggestions.Put(ctx, sg); err != nil {
		return fmt.Errorf("save suggestion: %w", err)
	}
	s.announce(ctx, userID, core.CollectionSuggestions, id, live.OpPut)
	return nil
}

// RecordCorrection remembers that the user filed a description under a
// different category than the one suggested.
func (s *FinanceService) RecordCorrection(ctx context.Context, c core.Correction) (core.Correction, error) {
	c.ID = newID()
	c.Description = strings.TrimSpace(c.Description)
	c.CorrectedCategory = strings.TrimSpace(c.CorrectedCategory)
	c.CreatedAt = s.now().UTC()

	if err := c.Validate(); err != nil {
		return core.Correction{}, invalid(err)
	}
	if err := s.store.Corrections.Put(ctx, c); err != nil {
		return core.Correction{}, fmt.Errorf("save correction: %w", err)
	}
	s.announce(ctx, c.UserID, core.CollectionCorrections, c.ID, live.OpPut)
	return c, nil
}

// LearnedCategory returns the most recent correction whose description
// matches, case-insensitively.
func (s *FinanceService) LearnedCategory(ctx context.Context, userID, description string) (string, bool) {
	if userID == "" {
		return "", false
	}
	corrections, err := s.store.Corrections.List(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load corrections", "user_id", userID, "error", err)
		return "", false
	}
	want := strings.ToLower(strings.TrimSpace(description))
	for i := len(corrections) - 1; i >= 0; i-- {
		if strings.ToLower(corrections[i].Description) == want {
			return corrections[i].CorrectedCategory, true
		}
	}
	return "", false
}

// Snapshot reads every collection once and derives the current figures.
func (s *FinanceService) Snapshot(ctx context.Context, userID string) (core.Snapshot, error) {
	st, err := LoadState(ctx, s.store, userID)
	if err != nil {
		return core.Snapshot{}, err
	}
	return BuildSnapshot(userID, st, s.now()), nil
}

func (s *FinanceService) Transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.store.Transactions.List(ctx, userID)
}

func (s *FinanceService) Categories(ctx context.Context) ([]string, error) {
	if s.store.Categories == nil {
		return append([]string(nil), storage.DefaultCategories...), nil
	}
	return s.store.Categories.ListCategories(ctx)
}
