// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurrence intervals.
// Each frequency (daily, weekly, monthly, yearly) has its own interval
// that knows how to step a due date forward by exactly one cycle.

package services

import (
	"fmt"
	"time"

	"finze/internal/core"
)

// Interval is the strategy interface for advancing a recurrence by one cycle.
type Interval interface {
	// Next returns from advanced by one cycle.
	Next(from time.Time) time.Time
}

// DailyInterval advances by one calendar day.
type DailyInterval struct{}

func (DailyInterval) Next(from time.Time) time.Time { return from.AddDate(0, 0, 1) }

// WeeklyInterval advances by seven calendar days.
type WeeklyInterval struct{}

func (WeeklyInterval) Next(from time.Time) time.Time { return from.AddDate(0, 0, 7) }

// MonthlyInterval advances by one calendar month, clamping to the last day of
// the target month (Jan 31 -> Feb 28/29).
type MonthlyInterval struct{}

func (MonthlyInterval) Next(from time.Time) time.Time { return addMonthsClamped(from, 1) }

// YearlyInterval advances by one calendar year, clamping Feb 29 to Feb 28.
type YearlyInterval struct{}

func (YearlyInterval) Next(from time.Time) time.Time { return addMonthsClamped(from, 12) }

// addMonthsClamped differs from time.AddDate, which normalizes Jan 31 + 1 month
// into early March.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month(), t.Location())
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// intervals maps frequencies to their strategies.
var intervals = map[core.Frequency]Interval{
	core.Daily:   DailyInterval{},
	core.Weekly:  WeeklyInterval{},
	core.Monthly: MonthlyInterval{},
	core.Yearly:  YearlyInterval{},
}

// GetInterval returns the interval strategy for a frequency.
func GetInterval(frequency core.Frequency) (Interval, error) {
	iv, ok := intervals[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return iv, nil
}

// NextDue computes the first due date of a recurrence created at now.
func NextDue(now time.Time, frequency core.Frequency) (time.Time, error) {
	iv, err := GetInterval(frequency)
	if err != nil {
		return time.Time{}, err
	}
	return iv.Next(now), nil
}

// Anchored reports whether a frequency steps by calendar months and so needs
// an anchor day to survive short months.
func Anchored(frequency core.Frequency) bool {
	return frequency == core.Monthly || frequency == core.Yearly
}

// Advance steps due forward one cycle of r. Monthly and yearly cycles land on
// r.AnchorDay, clamped to the length of the target month, so Jan 31 -> Feb 29
// -> Mar 31 rather than Mar 29.
func Advance(r core.Recurrence, due time.Time) (time.Time, error) {
	iv, err := GetInterval(r.Frequency)
	if err != nil {
		return time.Time{}, err
	}
	next := iv.Next(due)
	if !Anchored(r.Frequency) || r.AnchorDay <= 0 {
		return next, nil
	}
	day := min(r.AnchorDay, daysIn(next.Year(), next.Month(), next.Location()))
	return time.Date(next.Year(), next.Month(), day,
		next.Hour(), next.Minute(), next.Second(), next.Nanosecond(), next.Location()), nil
}

// IsDue reports whether an active recurrence's next due date has been reached.
func IsDue(r core.Recurrence, now time.Time) bool {
	return r.IsActive && !r.NextDue.IsZero() && !r.NextDue.After(now)
}
