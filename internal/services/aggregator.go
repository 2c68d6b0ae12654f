// Package services provides business logic and orchestration services.
//
// This file holds the financial aggregator: pure functions that turn
// whatever collections are currently held into derived figures. Nothing here
// performs I/O; empty input degrades to zero output.
package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"finze/internal/core"
)

// MonthlySummary totals the transactions dated in now's calendar month.
func MonthlySummary(txs []core.Transaction, now time.Time) core.MonthlySummary {
	month := core.MonthKey(now)
	s := core.MonthlySummary{Month: month}
	for _, tx := range txs {
		if !tx.InMonth(month) {
			continue
		}
		switch tx.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case core.Expense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
		default:
			continue
		}
		s.Count++
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	return s
}

// SpendByCategory sums current-month expenses per category, largest first.
func SpendByCategory(txs []core.Transaction, now time.Time) []core.CategoryAmount {
	month := core.MonthKey(now)
	return sumByCategory(txs, func(tx core.Transaction) bool {
		return tx.Type == core.Expense && tx.InMonth(month)
	})
}

func sumByCategory(txs []core.Transaction, keep func(core.Transaction) bool) []core.CategoryAmount {
	totals := map[string]int64{}
	names := map[string]string{}
	for _, tx := range txs {
		if !keep(tx) {
			continue
		}
		name := strings.TrimSpace(tx.Category)
		if name == "" {
			name = "Other"
		}
		key := strings.ToLower(name)
		if _, ok := names[key]; !ok {
			names[key] = name
		}
		totals[key] += tx.Amount.Cents
	}
	out := make([]core.CategoryAmount, 0, len(totals))
	for key, cents := range totals {
		out = append(out, core.CategoryAmount{Name: names[key], Amount: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// BudgetUtilization computes current-month spend against one budget.
func BudgetUtilization(b core.Budget, txs []core.Transaction, now time.Time) core.BudgetStatus {
	month := core.MonthKey(now)
	var spent core.Money
	for _, tx := range txs {
		if tx.Type != core.Expense || !tx.InMonth(month) {
			continue
		}
		if MatchesCategory(b.Category, tx.Category) {
			spent = spent.Add(tx.Amount)
		}
	}

	var pct float64
	if b.Amount.Cents > 0 {
		pct = float64(spent.Cents) * 100 / float64(b.Amount.Cents)
	}

	return core.BudgetStatus{
		Budget:     b,
		Spent:      spent,
		Remaining:  b.Amount.Sub(spent),
		Percentage: pct,
		Band:       ClassifyBand(pct, b.Threshold()),
	}
}

// ClassifyBand maps a utilization percentage onto ok/warning/over.
func ClassifyBand(percentage, threshold float64) core.Band {
	switch {
	case percentage > 100:
		return core.BandOver
	case percentage > threshold:
		return core.BandWarning
	default:
		return core.BandOK
	}
}

// BudgetsUtilization applies BudgetUtilization to every budget, keeping input order.
func BudgetsUtilization(budgets []core.Budget, txs []core.Transaction, now time.Time) []core.BudgetStatus {
	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, BudgetUtilization(b, txs, now))
	}
	return out
}

// SavingsProgress reports how far a goal is from its target.
func SavingsProgress(g core.SavingsGoal, now time.Time) core.GoalProgress {
	var pct float64
	if g.TargetAmount.Cents > 0 {
		pct = float64(g.CurrentAmount.Cents) * 100 / float64(g.TargetAmount.Cents)
	}
	remaining := g.TargetAmount.Sub(g.CurrentAmount)
	if remaining.Cents < 0 {
		remaining = core.Money{}
	}
	return core.GoalProgress{
		Goal:              g,
		Percentage:        pct,
		DisplayPercentage: math.Min(pct, 100),
		Completed:         g.TargetAmount.Cents > 0 && pct >= 100,
		Remaining:         remaining,
		RemainingDays:     RemainingDays(g.TargetDate, now),
	}
}

// RemainingDays is the ceiling of the day difference between target and now.
// Past deadlines round away from zero so that any elapsed deadline is negative.
func RemainingDays(target, now time.Time) int {
	days := target.Sub(now).Hours() / 24
	if days < 0 {
		return -int(math.Ceil(-days))
	}
	return int(math.Ceil(days))
}

// UpdateProgress applies a contribution (negative to withdraw) and recomputes
// the completion flag before returning. currentAmount never drops below zero.
func UpdateProgress(g core.SavingsGoal, delta core.Money) core.SavingsGoal {
	g.CurrentAmount = g.CurrentAmount.Add(delta)
	if g.CurrentAmount.Cents < 0 {
		g.CurrentAmount = core.Money{}
	}
	g.Refresh()
	return g
}

// UnreadSuggestions filters suggestions in memory, newest first.
func UnreadSuggestions(in []core.Suggestion) []core.Suggestion {
	out := make([]core.Suggestion, 0, len(in))
	for _, s := range in {
		if !s.IsRead {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// UpcomingRecurrences lists active recurrences ordered by next due date.
func UpcomingRecurrences(in []core.Recurrence, now time.Time) []core.UpcomingRecurrence {
	out := make([]core.UpcomingRecurrence, 0, len(in))
	for _, r := range in {
		if !r.IsActive {
			continue
		}
		out = append(out, core.UpcomingRecurrence{
			Recurrence: r,
			Due:        IsDue(r, now),
			DaysUntil:  RemainingDays(r.NextDue, now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Recurrence.NextDue.Before(out[j].Recurrence.NextDue)
	})
	return out
}

// State is whatever collections are currently held for one user. Each field
// is replaced independently as snapshots arrive.
type State struct {
	Transactions []core.Transaction
	Budgets      []core.Budget
	Goals        []core.SavingsGoal
	Recurrences  []core.Recurrence
	Suggestions  []core.Suggestion
}

// BuildSnapshot derives every figure from the held state.
func BuildSnapshot(userID string, st State, now time.Time) core.Snapshot {
	goals := make([]core.GoalProgress, 0, len(st.Goals))
	for _, g := range st.Goals {
		goals = append(goals, SavingsProgress(g, now))
	}
	return core.Snapshot{
		UserID:            userID,
		GeneratedAt:       now,
		Monthly:           MonthlySummary(st.Transactions, now),
		ByCategory:        SpendByCategory(st.Transactions, now),
		Budgets:           BudgetsUtilization(st.Budgets, st.Transactions, now),
		Goals:             goals,
		Recurrences:       UpcomingRecurrences(st.Recurrences, now),
		UnreadSuggestions: len(UnreadSuggestions(st.Suggestions)),
	}
}
