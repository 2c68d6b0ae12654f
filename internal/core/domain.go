package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Collection names as stored per user.
const (
	CollectionTransactions Collection = "expenses"
	CollectionBudgets      Collection = "budgets"
	CollectionGoals        Collection = "savings_goals"
	CollectionRecurrences  Collection = "recurring_expenses"
	CollectionSuggestions  Collection = "smart_suggestions"
	CollectionCorrections  Collection = "corrections"
)

// DefaultAlertThreshold is applied to budgets stored without a threshold.
const DefaultAlertThreshold = 80.0

type (
	Frequency       string
	TransactionType string
	Priority        string
	Collection      string

	Transaction struct {
		ID            string          `json:"id" bson:"id"`
		UserID        string          `json:"userId" bson:"user_id"`
		Amount        Money           `json:"amount" bson:"amount"`
		Type          TransactionType `json:"type" bson:"type"`
		Category      string          `json:"category" bson:"category"`
		Title         string          `json:"title" bson:"title"`
		Description   string          `json:"description,omitempty" bson:"description,omitempty"`
		Date          string          `json:"date" bson:"date"` // ISO, month-bucketed by prefix
		Source        string          `json:"source,omitempty" bson:"source,omitempty"`
		PaymentMethod string          `json:"paymentMethod,omitempty" bson:"payment_method,omitempty"`
		CreatedAt     time.Time       `json:"createdAt" bson:"created_at"`
	}

	Budget struct {
		ID             string    `json:"id" bson:"id"`
		UserID         string    `json:"userId" bson:"user_id"`
		Category       string    `json:"category" bson:"category"`
		Amount         Money     `json:"amount" bson:"amount"`
		Period         Frequency `json:"period" bson:"period"`
		AlertThreshold float64   `json:"alertThreshold" bson:"alert_threshold"`
		IsActive       bool      `json:"isActive" bson:"is_active"`
		StartDate      string    `json:"startDate,omitempty" bson:"start_date,omitempty"`
		EndDate        string    `json:"endDate,omitempty" bson:"end_date,omitempty"`
		Notifications  bool      `json:"notifications" bson:"notifications"`
	}

	SavingsGoal struct {
		ID            string    `json:"id" bson:"id"`
		UserID        string    `json:"userId" bson:"user_id"`
		Name          string    `json:"name" bson:"name"`
		TargetAmount  Money     `json:"targetAmount" bson:"target_amount"`
		CurrentAmount Money     `json:"currentAmount" bson:"current_amount"`
		TargetDate    time.Time `json:"targetDate" bson:"target_date"`
		Category      string    `json:"category,omitempty" bson:"category,omitempty"`
		Priority      Priority  `json:"priority" bson:"priority"`
		Description   string    `json:"description,omitempty" bson:"description,omitempty"`
		IsCompleted   bool      `json:"isCompleted" bson:"is_completed"` // cache of CurrentAmount >= TargetAmount
	}

	Recurrence struct {
		ID          string          `json:"id" bson:"id"`
		UserID      string          `json:"userId" bson:"user_id"`
		Title       string          `json:"title" bson:"title"`
		Amount      Money           `json:"amount" bson:"amount"`
		Category    string          `json:"category" bson:"category"`
		Type        TransactionType `json:"type" bson:"type"`
		Frequency   Frequency       `json:"frequency" bson:"frequency"`
		LastApplied time.Time       `json:"lastApplied,omitempty" bson:"last_applied,omitempty"`
		NextDue     time.Time       `json:"nextDue" bson:"next_due"`
		IsActive    bool            `json:"isActive" bson:"is_active"`
		// AnchorDay is the day of month monthly and yearly cycles fall on
		// whenever the month is long enough. Zero means NextDue's day.
		AnchorDay int `json:"anchorDay,omitempty" bson:"anchor_day,omitempty"`
	}

	Suggestion struct {
		ID             string    `json:"id" bson:"id"`
		UserID         string    `json:"userId" bson:"user_id"`
		Title          string    `json:"title" bson:"title"`
		Description    string    `json:"description" bson:"description"`
		Priority       Priority  `json:"priority" bson:"priority"`
		Type           string    `json:"type" bson:"type"`
		ActionRequired bool      `json:"actionRequired" bson:"action_required"`
		IsRead         bool      `json:"isRead" bson:"is_read"`
		CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
	}

	// Correction records a user overriding a suggested category.
	Correction struct {
		ID                string    `json:"id" bson:"id"`
		UserID            string    `json:"userId" bson:"user_id"`
		Description       string    `json:"description" bson:"description"`
		OriginalCategory  string    `json:"originalCategory" bson:"original_category"`
		CorrectedCategory string    `json:"correctedCategory" bson:"corrected_category"`
		CreatedAt         time.Time `json:"createdAt" bson:"created_at"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidThreshold  = errors.New("alert threshold must be between 0 and 100")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyTitle        = errors.New("empty title")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyDescription  = errors.New("empty description")
	ErrMissingUser       = errors.New("missing user id")
	ErrMissingTargetDate = errors.New("missing target date")
)

// Document is satisfied by every stored entity.
type Document interface {
	GetID() string
	GetUserID() string
}

func (t Transaction) GetID() string     { return t.ID }
func (t Transaction) GetUserID() string { return t.UserID }
func (b Budget) GetID() string          { return b.ID }
func (b Budget) GetUserID() string      { return b.UserID }
func (g SavingsGoal) GetID() string     { return g.ID }
func (g SavingsGoal) GetUserID() string { return g.UserID }
func (r Recurrence) GetID() string      { return r.ID }
func (r Recurrence) GetUserID() string  { return r.UserID }
func (s Suggestion) GetID() string      { return s.ID }
func (s Suggestion) GetUserID() string  { return s.UserID }
func (c Correction) GetID() string      { return c.ID }
func (c Correction) GetUserID() string  { return c.UserID }

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// MonthKey returns the YYYY-MM prefix used to bucket transaction dates.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// InMonth reports whether the transaction date starts with the given month key.
// Missing or malformed dates never match.
func (t Transaction) InMonth(monthKey string) bool {
	return monthKey != "" && strings.HasPrefix(t.Date, monthKey)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrMissingUser
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(t.Title) == "" && strings.TrimSpace(t.Description) == "" {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if _, err := time.Parse("2006-01-02", dayPart(t.Date)); err != nil {
		return errors.New("invalid date: expected YYYY-MM-DD")
	}
	return nil
}

// Threshold returns the alert threshold, defaulting when unset.
func (b Budget) Threshold() float64 {
	if b.AlertThreshold <= 0 {
		return DefaultAlertThreshold
	}
	return b.AlertThreshold
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if !b.Period.Valid() || b.Period == Daily {
		return ErrInvalidFrequency
	}
	if b.AlertThreshold < 0 || b.AlertThreshold > 100 {
		return ErrInvalidThreshold
	}
	return nil
}

// Refresh recomputes the cached completion flag.
func (g *SavingsGoal) Refresh() {
	g.IsCompleted = g.TargetAmount.Cents > 0 && g.CurrentAmount.Cents >= g.TargetAmount.Cents
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.TargetAmount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if g.CurrentAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if g.TargetDate.IsZero() {
		return ErrMissingTargetDate
	}
	if g.Priority != "" && !g.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

func (r Recurrence) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if r.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if !r.Type.Valid() {
		return ErrInvalidType
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	return nil
}

func (c Correction) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(c.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(c.CorrectedCategory) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func dayPart(date string) string {
	if len(date) >= 10 {
		return date[:10]
	}
	return date
}
