package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"passi/internal/amqp"
	"passi/internal/core"
)

// RecapPublisher delivers rendered leaderboard snapshots to the chat
// transport.
type RecapPublisher interface {
	PublishRecap(ctx context.Context, msg *amqp.RecapMessage) error
}

// RecapScheduler publishes daily, weekly and monthly leaderboard
// recaps. Each window is published at most once per period, tracked
// per window via its dueness checker.
type RecapScheduler struct {
	service   *StepsService
	publisher RecapPublisher
	windows   []Window

	mu      sync.Mutex
	lastRun map[Window]time.Time
}

// NewRecapScheduler creates a scheduler covering the given windows.
func NewRecapScheduler(service *StepsService, publisher RecapPublisher, windows ...Window) *RecapScheduler {
	if len(windows) == 0 {
		windows = []Window{DailyWindow, WeeklyWindow, MonthlyWindow}
	}
	return &RecapScheduler{
		service:   service,
		publisher: publisher,
		windows:   windows,
		lastRun:   make(map[Window]time.Time),
	}
}

// ProcessDue checks every configured window and publishes a recap for
// each one whose period has rolled over since its last publication.
// Returns the number of recaps published.
func (s *RecapScheduler) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if s.service == nil || s.publisher == nil {
		return 0, fmt.Errorf("scheduler not properly initialized")
	}

	published := 0
	for _, window := range s.windows {
		checker, err := GetDuenessChecker(window)
		if err != nil {
			return published, err
		}

		s.mu.Lock()
		last := s.lastRun[window]
		s.mu.Unlock()

		if !checker.IsDue(last, now) {
			continue
		}

		if err := s.publishWindow(ctx, window, now); err != nil {
			slog.ErrorContext(ctx, "Failed to publish recap",
				"window", window,
				"error", err)
			continue
		}

		s.mu.Lock()
		s.lastRun[window] = now
		s.mu.Unlock()
		published++
	}

	return published, nil
}

func (s *RecapScheduler) publishWindow(ctx context.Context, window Window, now time.Time) error {
	ref := core.DateOf(now)

	var (
		board []core.RankedEntry
		label string
		err   error
	)
	switch window {
	case DailyWindow:
		board, err = s.service.DailyLeaderboard(ctx, ref)
		label = ref.Key()
	case WeeklyWindow:
		board, err = s.service.WeeklyLeaderboard(ctx, ref)
		label = "week of " + core.WeekStartOf(ref).Key()
	case MonthlyWindow:
		board, err = s.service.MonthlyLeaderboard(ctx, ref)
		label = core.MonthLabel(ref)
	default:
		return fmt.Errorf("unknown recap window: %s", window)
	}
	if err != nil {
		return fmt.Errorf("build %s leaderboard: %w", window, err)
	}

	entries := make([]amqp.RecapEntry, 0, len(board))
	for _, row := range board {
		entries = append(entries, amqp.RecapEntry{
			Rank:  row.Rank,
			Name:  row.Name,
			Steps: row.Steps,
		})
	}

	msg := &amqp.RecapMessage{
		Window:      string(window),
		Label:       label,
		GeneratedAt: now,
		Entries:     entries,
	}

	if err := s.publisher.PublishRecap(ctx, msg); err != nil {
		return fmt.Errorf("publish %s recap: %w", window, err)
	}

	slog.InfoContext(ctx, "Published recap",
		"window", window,
		"label", label,
		"entries", len(entries))
	return nil
}
