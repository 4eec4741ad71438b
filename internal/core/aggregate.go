package core

import (
	"fmt"
	"math"
)

// WeekStartOf returns the Monday on or before d. Weeks run Monday
// through Sunday, so a Sunday maps to the Monday six days earlier.
func WeekStartOf(d Date) Date {
	dow := int(d.Weekday()) // Sunday = 0 ... Saturday = 6
	offset := 1 - dow
	if dow == 0 {
		offset = -6
	}
	return d.AddDays(offset)
}

// MonthKey returns the machine-comparable (year, month) key of d,
// e.g. "2024-03". Display code should use MonthLabel instead.
func MonthKey(d Date) string {
	return d.Format("2006-01")
}

// MonthLabel returns a stable "Month Year" display label, e.g.
// "March 2024". Callers comparing months must use MonthKey.
func MonthLabel(d Date) string {
	return fmt.Sprintf("%s %d", d.Month().String(), d.Year())
}

// TotalSteps sums all entries. Zero for an empty ledger.
func TotalSteps(entries []DailyEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Steps
	}
	return total
}

// WeeklyTotal sums the entries falling in the same Monday-start week
// as ref. It is a full scan over the member's ledger on every call.
func WeeklyTotal(entries []DailyEntry, ref Date) int {
	week := WeekStartOf(ref)
	total := 0
	for _, e := range entries {
		if WeekStartOf(e.Day).Equal(week) {
			total += e.Steps
		}
	}
	return total
}

// MonthlyTotal sums the entries sharing year and month with ref.
func MonthlyTotal(entries []DailyEntry, ref Date) int {
	total := 0
	for _, e := range entries {
		if e.Day.SameMonth(ref) {
			total += e.Steps
		}
	}
	return total
}

// DailyAverage is the rounded mean over active days, 0 when there are none.
func DailyAverage(total, activeDays int) int {
	if activeDays == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(activeDays)))
}
