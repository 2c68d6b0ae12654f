package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finze/internal/core"
)

// MaxAnalyzedTransactions caps one ad-hoc analysis.
const MaxAnalyzedTransactions = 1000

const (
	AnalysisSourceRules = "rules"
	AnalysisSourceModel = "model"

	maxTopCategories = 5
	maxModelInsights = 3
)

// Advisor writes extra insights for an analysis the rules already scored.
type Advisor interface {
	Advise(ctx context.Context, analysis core.SpendingAnalysis) ([]core.Insight, error)
}

// SpendingAnalyzer scores spending and explains the score. The score and the
// rule insights are deterministic; an Advisor may append a few more.
type SpendingAnalyzer struct {
	finance *FinanceService
	advisor Advisor
	now     func() time.Time
}

func NewSpendingAnalyzer(finance *FinanceService, advisor Advisor) *SpendingAnalyzer {
	return &SpendingAnalyzer{finance: finance, advisor: advisor, now: time.Now}
}

// AdvisorEnabled reports whether a model contributes insights.
func (a *SpendingAnalyzer) AdvisorEnabled() bool {
	return a.advisor != nil
}

// Analyze scores the given transactions without storing anything.
// Transactions without a type count as expenses.
func (a *SpendingAnalyzer) Analyze(ctx context.Context, txs []core.Transaction) (core.SpendingAnalysis, error) {
	if len(txs) == 0 {
		return core.SpendingAnalysis{}, invalid(errors.New("no expenses to analyze"))
	}
	if len(txs) > MaxAnalyzedTransactions {
		return core.SpendingAnalysis{}, invalid(fmt.Errorf("at most %d expenses per analysis", MaxAnalyzedTransactions))
	}

	txs = append([]core.Transaction(nil), txs...)
	var income, spent core.Money
	for i := range txs {
		if txs[i].Type == "" {
			txs[i].Type = core.Expense
		}
		if !txs[i].Type.Valid() {
			return core.SpendingAnalysis{}, invalid(fmt.Errorf("expense %d: %w", i, core.ErrInvalidType))
		}
		if txs[i].Amount.Cents < 0 {
			return core.SpendingAnalysis{}, invalid(fmt.Errorf("expense %d: %w", i, core.ErrInvalidAmount))
		}
		if txs[i].Type == core.Income {
			income = income.Add(txs[i].Amount)
		} else {
			spent = spent.Add(txs[i].Amount)
		}
	}

	byCategory := sumByCategory(txs, func(tx core.Transaction) bool { return tx.Type == core.Expense })
	an := core.SpendingAnalysis{
		TotalIncome:      income,
		TotalSpent:       spent,
		TransactionCount: len(txs),
		TopCategories:    topCategories(byCategory),
	}
	an.FinancialHealthScore, an.Insights = assess(figures{income: income, spent: spent, byCategory: byCategory})
	a.advise(ctx, &an)
	return an, nil
}

// Insights analyses the user's current month together with their budgets and
// goals, and saves each insight as an unread suggestion unless an unread one
// with the same title is already pending.
func (a *SpendingAnalyzer) Insights(ctx context.Context, userID string) (core.SpendingAnalysis, error) {
	st, err := LoadState(ctx, a.finance.store, userID)
	if err != nil {
		return core.SpendingAnalysis{}, err
	}
	snap := BuildSnapshot(userID, st, a.now())

	an := core.SpendingAnalysis{
		UserID:           userID,
		Period:           snap.Monthly.Month,
		TotalIncome:      snap.Monthly.TotalIncome,
		TotalSpent:       snap.Monthly.TotalExpenses,
		TransactionCount: snap.Monthly.Count,
		TopCategories:    topCategories(snap.ByCategory),
	}
	an.FinancialHealthScore, an.Insights = assess(figures{
		income:     snap.Monthly.TotalIncome,
		spent:      snap.Monthly.TotalExpenses,
		byCategory: snap.ByCategory,
		budgets:    snap.Budgets,
		goals:      snap.Goals,
	})
	a.advise(ctx, &an)

	pending := map[string]bool{}
	for _, sg := range UnreadSuggestions(st.Suggestions) {
		pending[titleKey(sg.Title)] = true
	}
	for _, in := range an.Insights {
		key := titleKey(in.Title)
		if pending[key] {
			continue
		}
		if _, err := a.finance.AddSuggestion(ctx, in.Suggestion(userID)); err != nil {
			return an, fmt.Errorf("save insight: %w", err)
		}
		pending[key] = true
		an.SuggestionsCreated++
	}

	slog.InfoContext(ctx, "Spending insights generated",
		"user_id", userID,
		"score", an.FinancialHealthScore,
		"insights", len(an.Insights),
		"suggestions_created", an.SuggestionsCreated,
		"source", an.Source)
	return an, nil
}

func (a *SpendingAnalyzer) advise(ctx context.Context, an *core.SpendingAnalysis) {
	an.Source = AnalysisSourceRules
	if a.advisor == nil {
		return
	}
	extra, err := a.advisor.Advise(ctx, *an)
	if err != nil {
		slog.WarnContext(ctx, "Model analysis failed, keeping rule insights", "error", err)
		return
	}

	seen := map[string]bool{}
	for _, in := range an.Insights {
		seen[titleKey(in.Title)] = true
	}
	added := 0
	for _, in := range extra {
		if added == maxModelInsights {
			break
		}
		in.Title = strings.TrimSpace(in.Title)
		if in.Title == "" || seen[titleKey(in.Title)] {
			continue
		}
		if !in.Priority.Valid() {
			in.Priority = core.PriorityMedium
		}
		if in.Type == "" {
			in.Type = "ai"
		}
		seen[titleKey(in.Title)] = true
		an.Insights = append(an.Insights, in)
		added++
	}
	if added > 0 {
		an.Source = AnalysisSourceModel
	}
}

type figures struct {
	income     core.Money
	spent      core.Money
	byCategory []core.CategoryAmount
	budgets    []core.BudgetStatus
	goals      []core.GoalProgress
}

// assess starts from 100 and deducts for a low savings rate, active budgets
// in the warning or over band, one category above half of all spending and
// goals past their target date.
func assess(f figures) (int, []core.Insight) {
	score := 100
	var out []core.Insight

	if f.income.Cents > 0 {
		kept := f.income.Sub(f.spent)
		rate := float64(kept.Cents) / float64(f.income.Cents)
		switch {
		case rate < 0:
			score -= 40
			out = append(out, core.Insight{
				Title:          "Spending exceeds income",
				Description:    fmt.Sprintf("You spent %s against %s of income, %s more than you earned.", f.spent, f.income, core.Money{Cents: -kept.Cents}),
				Priority:       core.PriorityHigh,
				Type:           "alert",
				ActionRequired: true,
			})
		case rate < 0.1:
			score -= 20
			out = append(out, core.Insight{
				Title:          "Savings rate below 10%",
				Description:    fmt.Sprintf("You kept %.0f%% of your income. Aim for at least 20%%.", rate*100),
				Priority:       core.PriorityMedium,
				Type:           "savings",
				ActionRequired: true,
			})
		case rate < 0.2:
			score -= 10
		default:
			out = append(out, core.Insight{
				Title:       "Healthy savings rate",
				Description: fmt.Sprintf("You kept %.0f%% of your income.", rate*100),
				Priority:    core.PriorityLow,
				Type:        "savings",
			})
		}
	}

	for _, b := range f.budgets {
		if !b.Budget.IsActive {
			continue
		}
		switch b.Band {
		case core.BandOver:
			score -= 10
			out = append(out, core.Insight{
				Title:          "Over budget: " + b.Budget.Category,
				Description:    fmt.Sprintf("Spent %s of %s (%.0f%%).", b.Spent, b.Budget.Amount, b.Percentage),
				Priority:       core.PriorityHigh,
				Type:           "budget",
				ActionRequired: true,
			})
		case core.BandWarning:
			score -= 5
			out = append(out, core.Insight{
				Title:       b.Budget.Category + " budget nearly used",
				Description: fmt.Sprintf("Spent %s of %s (%.0f%%), %s left.", b.Spent, b.Budget.Amount, b.Percentage, b.Remaining),
				Priority:    core.PriorityMedium,
				Type:        "budget",
			})
		}
	}

	if f.spent.Cents > 0 && len(f.byCategory) > 0 {
		top := f.byCategory[0]
		share := float64(top.Amount.Cents) * 100 / float64(f.spent.Cents)
		if share > 50 {
			score -= 10
			out = append(out, core.Insight{
				Title:       top.Name + " dominates spending",
				Description: fmt.Sprintf("%s is %.0f%% of your spending (%s).", top.Name, share, top.Amount),
				Priority:    core.PriorityMedium,
				Type:        "spending",
			})
		}
	}

	for _, g := range f.goals {
		if g.Completed || g.RemainingDays >= 0 {
			continue
		}
		score -= 5
		out = append(out, core.Insight{
			Title:          "Goal past its target date: " + g.Goal.Name,
			Description:    fmt.Sprintf("%s still needs %s. Move the date or raise contributions.", g.Goal.Name, g.Remaining),
			Priority:       core.PriorityMedium,
			Type:           "savings",
			ActionRequired: true,
		})
	}

	score = max(0, min(score, 100))
	if len(out) == 0 {
		out = append(out, core.Insight{
			Title:       "Spending looks balanced",
			Description: "No budget, savings or concentration issues this period.",
			Priority:    core.PriorityLow,
			Type:        "info",
		})
	}
	return score, out
}

func topCategories(in []core.CategoryAmount) []core.CategoryAmount {
	if len(in) > maxTopCategories {
		in = in[:maxTopCategories]
	}
	return append([]core.CategoryAmount{}, in...)
}

func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
