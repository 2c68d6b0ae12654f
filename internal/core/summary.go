package core

import "time"

// Band classifies budget utilization against its alert threshold.
type Band string

const (
	BandOK      Band = "ok"
	BandWarning Band = "warning"
	BandOver    Band = "over"
)

// Color is the display color associated with a band.
func (b Band) Color() string {
	switch b {
	case BandWarning:
		return "amber"
	case BandOver:
		return "red"
	default:
		return "green"
	}
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthlySummary holds totals for transactions dated in one calendar month.
type MonthlySummary struct {
	Month         string `json:"month"` // YYYY-MM
	TotalIncome   Money  `json:"totalIncome"`
	TotalExpenses Money  `json:"totalExpenses"`
	Balance       Money  `json:"balance"`
	Count         int    `json:"count"`
}

type BudgetStatus struct {
	Budget     Budget  `json:"budget"`
	Spent      Money   `json:"spent"`
	Remaining  Money   `json:"remaining"`
	Percentage float64 `json:"percentage"`
	Band       Band    `json:"band"`
}

type GoalProgress struct {
	Goal              SavingsGoal `json:"goal"`
	Percentage        float64     `json:"percentage"`        // unclamped
	DisplayPercentage float64     `json:"displayPercentage"` // clamped to 100
	Completed         bool        `json:"completed"`
	Remaining         Money       `json:"remaining"`
	RemainingDays     int         `json:"remainingDays"` // negative once the deadline passed
}

type UpcomingRecurrence struct {
	Recurrence Recurrence `json:"recurrence"`
	Due        bool       `json:"due"`
	DaysUntil  int        `json:"daysUntil"`
}

// Snapshot is the full set of derived figures for one user at one instant.
type Snapshot struct {
	UserID            string               `json:"userId"`
	GeneratedAt       time.Time            `json:"generatedAt"`
	Monthly           MonthlySummary       `json:"monthly"`
	ByCategory        []CategoryAmount     `json:"byCategory"`
	Budgets           []BudgetStatus       `json:"budgets"`
	Goals             []GoalProgress       `json:"goals"`
	Recurrences       []UpcomingRecurrence `json:"recurrences"`
	UnreadSuggestions int                  `json:"unreadSuggestions"`
}

// Insight is one observation about a user's spending. Insights written for
// a user become Suggestions.
type Insight struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority"`
	Type           string   `json:"type"`
	ActionRequired bool     `json:"actionRequired"`
}

// Suggestion turns an insight into an unsaved suggestion for userID.
func (i Insight) Suggestion(userID string) Suggestion {
	return Suggestion{
		UserID:         userID,
		Title:          i.Title,
		Description:    i.Description,
		Priority:       i.Priority,
		Type:           i.Type,
		ActionRequired: i.ActionRequired,
	}
}

// SpendingAnalysis scores a set of transactions from 0 to 100 and explains
// the score. Period is the month analysed, or empty for ad-hoc input.
type SpendingAnalysis struct {
	UserID               string           `json:"userId,omitempty"`
	Period               string           `json:"period,omitempty"`
	TotalIncome          Money            `json:"totalIncome"`
	TotalSpent           Money            `json:"totalSpent"`
	TransactionCount     int              `json:"transactionCount"`
	TopCategories        []CategoryAmount `json:"topCategories"`
	FinancialHealthScore int              `json:"financial_health_score"` // snake case kept for existing clients
	Insights             []Insight        `json:"insights"`
	// Source is "rules", or "model" when the model contributed insights.
	Source string `json:"source"`
	// SuggestionsCreated counts the insights newly saved as suggestions.
	SuggestionsCreated int `json:"suggestionsCreated,omitempty"`
}
