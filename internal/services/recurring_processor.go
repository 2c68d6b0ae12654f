package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finze/internal/core"
	"finze/internal/live"
	"finze/internal/storage"
)

// maxCatchUp bounds how many missed cycles one run will book for a single
// recurrence (a daily recurrence paused for a year is not replayed in full).
const maxCatchUp = 31

// RecurringProcessor books the transactions of elapsed recurrence cycles and
// advances nextDue. Each write is independent: a crash between booking a
// transaction and advancing nextDue books that cycle again on the next run.
type RecurringProcessor struct {
	store     *storage.Store
	publisher live.Publisher
}

func NewRecurringProcessor(store *storage.Store, publisher live.Publisher) *RecurringProcessor {
	if publisher == nil {
		publisher = live.Nop{}
	}
	return &RecurringProcessor{store: store, publisher: publisher}
}

// ProcessDue handles every user's due recurrences and returns how many
// transactions were created.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	recurrences, err := p.store.Recurrences.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recurrences: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"total", len(recurrences),
		"processing_date", now.Format("2006-01-02"))

	created := 0
	for _, r := range recurrences {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		if !IsDue(r, now) {
			continue
		}
		n, err := p.apply(ctx, r, now)
		created += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to apply recurrence",
				"recurrence_id", r.ID,
				"user_id", r.UserID,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring processing complete", "created", created)
	return created, nil
}

func (p *RecurringProcessor) apply(ctx context.Context, r core.Recurrence, now time.Time) (int, error) {
	if _, err := GetInterval(r.Frequency); err != nil {
		return 0, err
	}
	if r.AnchorDay == 0 && Anchored(r.Frequency) {
		r.AnchorDay = r.NextDue.Day()
	}

	created := 0
	due := r.NextDue
	for !due.After(now) {
		if created == maxCatchUp {
			// Skip the remaining missed cycles without booking them.
			for !due.After(now) {
				due, _ = Advance(r, due)
			}
			break
		}
		tx := core.Transaction{
			ID:        uuid.NewString(),
			UserID:    r.UserID,
			Amount:    r.Amount,
			Type:      r.Type,
			Category:  r.Category,
			Title:     r.Title,
			Date:      due.Format("2006-01-02"),
			Source:    "recurring",
			CreatedAt: now.UTC(),
		}
		if err := p.store.Transactions.Put(ctx, tx); err != nil {
			return created, fmt.Errorf("save transaction: %w", err)
		}
		created++
		r.LastApplied = due
		due, _ = Advance(r, due)
	}

	if created > 0 {
		p.announce(ctx, r.UserID, core.CollectionTransactions, "")
	}

	r.NextDue = due
	if err := p.store.Recurrences.Put(ctx, r); err != nil {
		return created, fmt.Errorf("advance recurrence: %w", err)
	}
	p.announce(ctx, r.UserID, core.CollectionRecurrences, r.ID)

	slog.InfoContext(ctx, "Applied recurrence",
		"recurrence_id", r.ID,
		"title", r.Title,
		"amount_cents", r.Amount.Cents,
		"frequency", r.Frequency,
		"booked", created,
		"next_due", r.NextDue.Format("2006-01-02"))
	return created, nil
}

func (p *RecurringProcessor) announce(ctx context.Context, userID string, coll core.Collection, id string) {
	if err := p.publisher.Publish(ctx, live.NewChange(userID, coll, id, live.OpPut)); err != nil {
		slog.WarnContext(ctx, "Failed to publish change", "collection", coll, "error", err)
	}
}
