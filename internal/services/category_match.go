package services

import "strings"

// MatchesCategory reports whether an expense category belongs to a budget
// category: case-insensitive equality, or either one containing the other.
//
// The substring rule is a heuristic and over-matches on purpose
// ("Food" also matches "Fast Food"). Changing it changes every budget figure.
func MatchesCategory(budgetCategory, expenseCategory string) bool {
	b := strings.ToLower(strings.TrimSpace(budgetCategory))
	e := strings.ToLower(strings.TrimSpace(expenseCategory))
	if b == "" || e == "" {
		return false
	}
	return b == e || strings.Contains(e, b) || strings.Contains(b, e)
}
