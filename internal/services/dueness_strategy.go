// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recap dueness checking.
// Each leaderboard window (daily, weekly, monthly) has its own strategy
// that encapsulates the logic for determining if a recap is due.

package services

import (
	"fmt"
	"time"

	"passi/internal/core"
)

// Window identifies a leaderboard time window.
type Window string

const (
	DailyWindow   Window = "daily"
	WeeklyWindow  Window = "weekly"
	MonthlyWindow Window = "monthly"
)

// DuenessChecker is the strategy interface for checking whether a
// recap for a window should be published again.
type DuenessChecker interface {
	// IsDue returns true if the last publication happened in an
	// earlier window period than now.
	IsDue(lastRun, now time.Time) bool
}

// DailyChecker publishes once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return !core.DateOf(lastRun).Equal(core.DateOf(now))
}

// WeeklyChecker publishes once per Monday-start week.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return !core.WeekStartOf(core.DateOf(lastRun)).Equal(core.WeekStartOf(core.DateOf(now)))
}

// MonthlyChecker publishes once per calendar month.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return core.MonthKey(core.DateOf(lastRun)) != core.MonthKey(core.DateOf(now))
}

// duenessStrategies maps windows to their corresponding checkers.
var duenessStrategies = map[Window]DuenessChecker{
	DailyWindow:   DailyChecker{},
	WeeklyWindow:  WeeklyChecker{},
	MonthlyWindow: MonthlyChecker{},
}

// GetDuenessChecker returns the checker for a window, or an error for
// an unsupported one.
func GetDuenessChecker(window Window) (DuenessChecker, error) {
	checker, ok := duenessStrategies[window]
	if !ok {
		return nil, fmt.Errorf("unknown recap window: %s", window)
	}
	return checker, nil
}
