package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"passi/internal/amqp"
	"passi/internal/core"
	"passi/internal/store"
)

// StepsService is the facade the command boundary invokes. All state
// is owned by the instance: one service per deployed group, no package
// globals, so independent instances never cross-contaminate.
type StepsService struct {
	store      store.Store
	amqpClient *amqp.Client
	now        func() time.Time

	// mu serializes mutations: logging steps is a find-or-create
	// read-modify-write that must not interleave across callers.
	mu      sync.Mutex
	version atomic.Int64
}

// LogResult tells the caller whether the entry was newly created or an
// existing day was overwritten, so it can phrase the reply accordingly.
type LogResult struct {
	Steps   int
	Created bool
}

func NewStepsService(st store.Store, amqpClient *amqp.Client) *StepsService {
	return &StepsService{
		store:      st,
		amqpClient: amqpClient,
		now:        time.Now,
	}
}

// NewStepsServiceWithClock is used by tests that need a fixed join date.
func NewStepsServiceWithClock(st store.Store, amqpClient *amqp.Client, now func() time.Time) *StepsService {
	s := NewStepsService(st, amqpClient)
	s.now = now
	return s
}

// LedgerVersion is a monotonically increasing counter bumped on every
// mutation. Caches keyed by it can never serve stale aggregates.
func (s *StepsService) LedgerVersion() int64 {
	return s.version.Load()
}

// Today returns the current calendar day on the service clock.
func (s *StepsService) Today() core.Date {
	return core.DateOf(s.now())
}

// Register creates or overwrites the member record. Never fails for a
// valid id/name; re-registering resets the display name but leaves the
// ledger untouched.
func (s *StepsService) Register(ctx context.Context, userID, name string) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := core.Member{ID: userID, Name: name, JoinedAt: s.now()}
	if err := s.store.SaveMember(ctx, m); err != nil {
		return core.Member{}, fmt.Errorf("register member: %w", err)
	}
	s.version.Add(1)

	slog.InfoContext(ctx, "Member registered", "member_id", userID, "name", name)
	return m, nil
}

// LogSteps parses the raw argument and upserts the member-day entry.
// Parse failures and negative values reject with ErrInvalidStepCount
// before the ledger is touched.
func (s *StepsService) LogSteps(ctx context.Context, userID string, day core.Date, rawSteps string) (LogResult, error) {
	if _, err := s.store.Member(ctx, userID); err != nil {
		return LogResult{}, err
	}

	steps, err := strconv.Atoi(rawSteps)
	if err != nil {
		return LogResult{}, fmt.Errorf("%w: %q is not a number", core.ErrInvalidStepCount, rawSteps)
	}
	if steps < 0 {
		return LogResult{}, fmt.Errorf("%w: %d is negative", core.ErrInvalidStepCount, steps)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.store.UpsertEntry(ctx, core.DailyEntry{MemberID: userID, Day: day, Steps: steps})
	if err != nil {
		return LogResult{}, fmt.Errorf("log steps: %w", err)
	}
	version := s.version.Add(1)

	// Best effort: the entry is committed, a failed publish only delays export.
	if err := s.publishSyncMessage(ctx, userID, day.Key(), version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"member_id", userID, "day", day.Key(), "error", err)
	}

	return LogResult{Steps: steps, Created: created}, nil
}

// DailyLeaderboard ranks every registered member's entry for the
// reference day. Members who logged nothing that day are omitted.
func (s *StepsService) DailyLeaderboard(ctx context.Context, ref core.Date) ([]core.RankedEntry, error) {
	members, err := s.store.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	scores := make([]core.Score, 0, len(members))
	for _, m := range members {
		entry, ok, err := s.store.Entry(ctx, m.ID, ref)
		if err != nil {
			return nil, fmt.Errorf("daily entry for %s: %w", m.ID, err)
		}
		if !ok {
			continue
		}
		scores = append(scores, core.Score{Name: m.Name, Steps: entry.Steps})
	}
	return core.Rank(scores), nil
}

// WeeklyLeaderboard ranks weekly totals derived by full recompute over
// each member's ledger. Zero totals are excluded.
func (s *StepsService) WeeklyLeaderboard(ctx context.Context, ref core.Date) ([]core.RankedEntry, error) {
	return s.windowLeaderboard(ctx, ref, core.WeeklyTotal)
}

// MonthlyLeaderboard ranks calendar-month totals, same rules as weekly.
func (s *StepsService) MonthlyLeaderboard(ctx context.Context, ref core.Date) ([]core.RankedEntry, error) {
	return s.windowLeaderboard(ctx, ref, core.MonthlyTotal)
}

func (s *StepsService) windowLeaderboard(ctx context.Context, ref core.Date, total func([]core.DailyEntry, core.Date) int) ([]core.RankedEntry, error) {
	members, err := s.store.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	scores := make([]core.Score, 0, len(members))
	for _, m := range members {
		entries, err := s.store.Entries(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("entries for %s: %w", m.ID, err)
		}
		scores = append(scores, core.Score{Name: m.Name, Steps: total(entries, ref)})
	}
	return core.Rank(scores), nil
}

// UserStats derives the personal summary for the reference date.
func (s *StepsService) UserStats(ctx context.Context, userID string, ref core.Date) (core.MemberStats, error) {
	if _, err := s.store.Member(ctx, userID); err != nil {
		return core.MemberStats{}, err
	}

	entries, err := s.store.Entries(ctx, userID)
	if err != nil {
		return core.MemberStats{}, fmt.Errorf("entries for %s: %w", userID, err)
	}

	stats := core.MemberStats{
		ThisWeek:   core.WeeklyTotal(entries, ref),
		ThisMonth:  core.MonthlyTotal(entries, ref),
		Total:      core.TotalSteps(entries),
		ActiveDays: len(entries),
	}
	for _, e := range entries {
		if e.Day.Equal(ref) {
			stats.Today = e.Steps
			break
		}
	}
	stats.DailyAverage = core.DailyAverage(stats.Total, stats.ActiveDays)
	return stats, nil
}

// ResetUser discards the member's entire ledger; derived totals drop
// to zero on the next read. Idempotent.
func (s *StepsService) ResetUser(ctx context.Context, userID string) error {
	if _, err := s.store.Member(ctx, userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ResetEntries(ctx, userID); err != nil {
		return fmt.Errorf("reset user: %w", err)
	}
	s.version.Add(1)

	slog.InfoContext(ctx, "Member ledger reset", "member_id", userID)
	return nil
}

func (s *StepsService) publishSyncMessage(ctx context.Context, memberID, day string, version int64) error {
	if s.amqpClient == nil {
		return nil
	}
	return s.amqpClient.PublishEntrySync(ctx, memberID, day, version)
}

// Close releases the store and AMQP connections, when present.
func (s *StepsService) Close() error {
	var errs []error

	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close steps service: %v", errs)
	}
	return nil
}
