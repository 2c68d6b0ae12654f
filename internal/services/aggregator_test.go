package services

import (
	"testing"
	"time"

	"finze/internal/core"
)

func money(units int64) core.Money { return core.Money{Cents: units * 100} }

var june2024 = time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)

func TestExampleScenario(t *testing.T) {
	txs := []core.Transaction{
		{Amount: money(5000), Type: core.Income, Date: "2024-06-01"},
		{Amount: money(1200), Type: core.Expense, Category: "Food", Date: "2024-06-05"},
	}
	budget := core.Budget{Category: "Food & Dining", Amount: money(2000), AlertThreshold: 80}

	st := BudgetUtilization(budget, txs, june2024)
	if st.Spent != money(1200) {
		t.Errorf("spent = %v, want 1200", st.Spent)
	}
	if st.Percentage != 60 {
		t.Errorf("percentage = %v, want 60", st.Percentage)
	}
	if st.Band != core.BandOK {
		t.Errorf("band = %v, want ok", st.Band)
	}

	sum := MonthlySummary(txs, june2024)
	if sum.TotalIncome != money(5000) || sum.TotalExpenses != money(1200) || sum.Balance != money(3800) {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.Month != "2024-06" || sum.Count != 2 {
		t.Errorf("unexpected month/count %+v", sum)
	}
}

func TestMonthlySummary_ExcludesOtherMonthsAndMalformedDates(t *testing.T) {
	txs := []core.Transaction{
		{Amount: money(100), Type: core.Income, Date: "2024-05-31"},
		{Amount: money(100), Type: core.Expense, Date: ""},
		{Amount: money(100), Type: core.Expense, Date: "20/06/2024"},
		{Amount: money(40), Type: core.Expense, Date: "2024-06-30T22:00:00Z"},
		{Amount: money(10), Type: "transfer", Date: "2024-06-02"},
	}
	sum := MonthlySummary(txs, june2024)
	if sum.TotalIncome.Cents != 0 || sum.TotalExpenses != money(40) || sum.Count != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestMonthlySummary_BalanceProperty(t *testing.T) {
	sets := [][]core.Transaction{
		nil,
		{{Amount: money(1), Type: core.Expense, Date: "2024-06-01"}},
		{
			{Amount: money(300), Type: core.Income, Date: "2024-06-01"},
			{Amount: core.Money{Cents: 12345}, Type: core.Expense, Date: "2024-06-02"},
			{Amount: money(900), Type: core.Expense, Date: "2024-06-03"},
		},
	}
	for i, txs := range sets {
		s := MonthlySummary(txs, june2024)
		if s.Balance != s.TotalIncome.Sub(s.TotalExpenses) {
			t.Fatalf("set %d: balance %v != income %v - expenses %v", i, s.Balance, s.TotalIncome, s.TotalExpenses)
		}
	}
}

func TestMatchesCategory(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Food", "food", true},
		{"Food", "Food & Dining", true},
		{"Food", "Fast Food", true},
		{"Transport", "Food", false},
		{"", "Food", false},
		{"Food", "", false},
	}
	for _, tc := range cases {
		if got := MatchesCategory(tc.a, tc.b); got != tc.want {
			t.Errorf("MatchesCategory(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
		if MatchesCategory(tc.a, tc.b) != MatchesCategory(tc.b, tc.a) {
			t.Errorf("MatchesCategory not symmetric for %q/%q", tc.a, tc.b)
		}
	}
}

func TestBudgetUtilization_Bands(t *testing.T) {
	tests := []struct {
		name      string
		spent     int64
		threshold float64
		want      core.Band
	}{
		{"at threshold is ok", 80, 80, core.BandOK},
		{"above threshold is warning", 81, 80, core.BandWarning},
		{"exactly full is warning", 100, 80, core.BandWarning},
		{"over budget", 101, 80, core.BandOver},
		{"default threshold", 85, 0, core.BandWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := core.Budget{Category: "Fun", Amount: money(100), AlertThreshold: tt.threshold}
			txs := []core.Transaction{{Amount: money(tt.spent), Type: core.Expense, Category: "fun", Date: "2024-06-10"}}
			if got := BudgetUtilization(b, txs, june2024).Band; got != tt.want {
				t.Errorf("band = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBudgetUtilization_ZeroAmountAndFilters(t *testing.T) {
	txs := []core.Transaction{
		{Amount: money(50), Type: core.Expense, Category: "Food", Date: "2024-06-10"},
		{Amount: money(70), Type: core.Income, Category: "Food", Date: "2024-06-10"},
		{Amount: money(90), Type: core.Expense, Category: "Food", Date: "2024-05-10"},
	}
	st := BudgetUtilization(core.Budget{Category: "Food"}, txs, june2024)
	if st.Percentage != 0 {
		t.Errorf("percentage with zero amount = %v, want 0", st.Percentage)
	}
	if st.Spent != money(50) {
		t.Errorf("spent = %v, want 50", st.Spent)
	}
	if st.Spent.Cents < 0 {
		t.Errorf("spent must never be negative")
	}
}

func TestSpendByCategory(t *testing.T) {
	txs := []core.Transaction{
		{Amount: money(10), Type: core.Expense, Category: "Food", Date: "2024-06-01"},
		{Amount: money(15), Type: core.Expense, Category: "food", Date: "2024-06-02"},
		{Amount: money(30), Type: core.Expense, Category: "Travel", Date: "2024-06-03"},
		{Amount: money(99), Type: core.Income, Category: "Salary", Date: "2024-06-03"},
	}
	got := SpendByCategory(txs, june2024)
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %+v", got)
	}
	if got[0].Name != "Travel" || got[0].Amount != money(30) {
		t.Errorf("unexpected first entry %+v", got[0])
	}
	if got[1].Name != "Food" || got[1].Amount != money(25) {
		t.Errorf("unexpected second entry %+v", got[1])
	}
}

func TestSavingsProgress(t *testing.T) {
	g := core.SavingsGoal{
		TargetAmount:  money(1000),
		CurrentAmount: money(1500),
		TargetDate:    june2024.Add(36 * time.Hour),
	}
	p := SavingsProgress(g, june2024)
	if p.Percentage != 150 {
		t.Errorf("percentage = %v, want 150 (unclamped)", p.Percentage)
	}
	if p.DisplayPercentage != 100 {
		t.Errorf("display percentage = %v, want 100", p.DisplayPercentage)
	}
	if !p.Completed {
		t.Error("expected completed")
	}
	if p.RemainingDays != 2 {
		t.Errorf("remaining days = %d, want 2", p.RemainingDays)
	}
	if p.Remaining.Cents != 0 {
		t.Errorf("remaining = %v, want 0", p.Remaining)
	}
}

func TestRemainingDays_SignMatchesDeadline(t *testing.T) {
	offsets := []time.Duration{
		-72 * time.Hour, -24 * time.Hour, -12 * time.Hour, -time.Second,
		0, time.Second, 12 * time.Hour, 24 * time.Hour, 72 * time.Hour,
	}
	for _, off := range offsets {
		target := june2024.Add(off)
		days := RemainingDays(target, june2024)
		if (days < 0) != target.Before(june2024) {
			t.Errorf("offset %v: remaining days %d, target before now = %v", off, days, target.Before(june2024))
		}
	}
	if got := RemainingDays(june2024.Add(-12*time.Hour), june2024); got != -1 {
		t.Errorf("half a day overdue = %d, want -1", got)
	}
}

func TestUpdateProgress_RecomputesCompletion(t *testing.T) {
	g := core.SavingsGoal{TargetAmount: money(100), CurrentAmount: money(90)}
	g = UpdateProgress(g, money(10))
	if !g.IsCompleted || g.IsCompleted != (g.CurrentAmount.Cents >= g.TargetAmount.Cents) {
		t.Fatalf("completion not recomputed: %+v", g)
	}
	g = UpdateProgress(g, money(-50))
	if g.IsCompleted {
		t.Fatalf("completion should clear after withdrawal: %+v", g)
	}
	g = UpdateProgress(g, money(-500))
	if g.CurrentAmount.Cents != 0 {
		t.Fatalf("current amount went negative: %+v", g)
	}
}

func TestUnreadSuggestions(t *testing.T) {
	in := []core.Suggestion{
		{ID: "a", IsRead: true},
		{ID: "b", CreatedAt: june2024.Add(-time.Hour)},
		{ID: "c", CreatedAt: june2024},
	}
	got := UnreadSuggestions(in)
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected unread %+v", got)
	}
}

func TestBuildSnapshot_EmptyStateDegradesToZero(t *testing.T) {
	snap := BuildSnapshot("u1", State{}, june2024)
	if snap.Monthly.Balance.Cents != 0 || len(snap.Budgets) != 0 || len(snap.Goals) != 0 {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
	if snap.UserID != "u1" || !snap.GeneratedAt.Equal(june2024) {
		t.Fatalf("unexpected identity fields %+v", snap)
	}
}

func TestUpcomingRecurrences(t *testing.T) {
	in := []core.Recurrence{
		{ID: "later", IsActive: true, NextDue: june2024.AddDate(0, 0, 10)},
		{ID: "paused", IsActive: false, NextDue: june2024},
		{ID: "due", IsActive: true, NextDue: june2024.Add(-time.Hour)},
	}
	got := UpcomingRecurrences(in, june2024)
	if len(got) != 2 || got[0].Recurrence.ID != "due" || !got[0].Due || got[1].DaysUntil != 10 {
		t.Fatalf("unexpected upcoming %+v", got)
	}
}
