package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"passi/internal/core"
	"passi/internal/store/memory"
)

func newTestService() *StepsService {
	clock := func() time.Time {
		return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	}
	return NewStepsServiceWithClock(memory.NewWithClock(clock), nil, clock)
}

func TestLogStepsIdempotentOverwrite(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	day := core.NewDate(2024, 3, 4)

	if _, err := svc.Register(ctx, "u1", "Ann"); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := svc.LogSteps(ctx, "u1", day, "8000")
	if err != nil {
		t.Fatalf("first log: %v", err)
	}
	if !res.Created || res.Steps != 8000 {
		t.Fatalf("first log: %+v", res)
	}

	res, err = svc.LogSteps(ctx, "u1", day, "9000")
	if err != nil {
		t.Fatalf("second log: %v", err)
	}
	if res.Created {
		t.Fatalf("second log on the same day must overwrite, got created=true")
	}

	stats, err := svc.UserStats(ctx, "u1", day)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ActiveDays != 1 || stats.Today != 9000 || stats.Total != 9000 {
		t.Fatalf("overwrite left wrong derived state: %+v", stats)
	}
}

func TestLogStepsRejectionLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	day := core.NewDate(2024, 3, 4)

	if _, err := svc.Register(ctx, "u1", "Ann"); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, raw := range []string{"-5", "abc", ""} {
		if _, err := svc.LogSteps(ctx, "u1", day, raw); !errors.Is(err, core.ErrInvalidStepCount) {
			t.Fatalf("raw %q: expected ErrInvalidStepCount, got %v", raw, err)
		}
	}

	stats, err := svc.UserStats(ctx, "u1", day)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ActiveDays != 0 {
		t.Fatalf("rejected logs must not create entries: %+v", stats)
	}

	// A rejection after a successful write keeps the prior value.
	if _, err := svc.LogSteps(ctx, "u1", day, "5000"); err != nil {
		t.Fatalf("valid log: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u1", day, "-1"); !errors.Is(err, core.ErrInvalidStepCount) {
		t.Fatalf("expected rejection")
	}
	stats, _ = svc.UserStats(ctx, "u1", day)
	if stats.Today != 5000 {
		t.Fatalf("rejection must not clobber the existing entry: %+v", stats)
	}
}

func TestLogStepsRequiresRegistration(t *testing.T) {
	svc := newTestService()
	_, err := svc.LogSteps(context.Background(), "ghost", core.NewDate(2024, 3, 4), "100")
	if !errors.Is(err, core.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestUseCasesFailForUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	day := core.NewDate(2024, 3, 4)

	if _, err := svc.UserStats(ctx, "ghost", day); !errors.Is(err, core.ErrNotRegistered) {
		t.Fatalf("stats: expected ErrNotRegistered, got %v", err)
	}
	if err := svc.ResetUser(ctx, "ghost"); !errors.Is(err, core.ErrNotRegistered) {
		t.Fatalf("reset: expected ErrNotRegistered, got %v", err)
	}
}

func TestDailyLeaderboardOmitsSilentMembers(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	today := core.NewDate(2024, 3, 5)

	for _, u := range []struct{ id, name string }{{"u1", "Ann"}, {"u2", "Bob"}, {"u3", "Cleo"}} {
		if _, err := svc.Register(ctx, u.id, u.name); err != nil {
			t.Fatalf("register %s: %v", u.id, err)
		}
	}
	// Bob logged yesterday but not today; Cleo logged today.
	if _, err := svc.LogSteps(ctx, "u2", today.AddDays(-1), "12000"); err != nil {
		t.Fatalf("log u2: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u3", today, "7000"); err != nil {
		t.Fatalf("log u3: %v", err)
	}

	board, err := svc.DailyLeaderboard(ctx, today)
	if err != nil {
		t.Fatalf("daily leaderboard: %v", err)
	}
	if len(board) != 1 || board[0].Name != "Cleo" || board[0].Rank != 1 {
		t.Fatalf("members without a today entry must be omitted: %+v", board)
	}
}

func TestWeeklyLeaderboardTieBreakFollowsRegistryOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	monday := core.NewDate(2024, 3, 4)

	for _, u := range []struct{ id, name string }{{"u1", "A"}, {"u2", "B"}, {"u3", "C"}} {
		if _, err := svc.Register(ctx, u.id, u.name); err != nil {
			t.Fatalf("register %s: %v", u.id, err)
		}
	}
	if _, err := svc.LogSteps(ctx, "u1", monday, "100"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u2", monday, "150"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u3", monday, "100"); err != nil {
		t.Fatalf("log: %v", err)
	}

	board, err := svc.WeeklyLeaderboard(ctx, monday.AddDays(1))
	if err != nil {
		t.Fatalf("weekly leaderboard: %v", err)
	}
	want := []core.RankedEntry{
		{Rank: 1, Name: "B", Steps: 150},
		{Rank: 2, Name: "A", Steps: 100},
		{Rank: 3, Name: "C", Steps: 100},
	}
	if len(board) != len(want) {
		t.Fatalf("expected %d rows, got %+v", len(want), board)
	}
	for i := range want {
		if board[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, board[i], want[i])
		}
	}
}

func TestWeeklyAndMonthlyTotalsEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	if _, err := svc.Register(ctx, "u1", "Ann"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u1", core.NewDate(2024, 3, 4), "8000"); err != nil { // Monday
		t.Fatalf("log mon: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u1", core.NewDate(2024, 3, 5), "9000"); err != nil {
		t.Fatalf("log tue: %v", err)
	}

	stats, err := svc.UserStats(ctx, "u1", core.NewDate(2024, 3, 5))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ThisWeek != 17000 {
		t.Fatalf("weekly total = %d, want 17000", stats.ThisWeek)
	}
	if stats.ThisMonth != 17000 {
		t.Fatalf("monthly total = %d, want 17000", stats.ThisMonth)
	}
	if stats.Total != 17000 || stats.ActiveDays != 2 || stats.DailyAverage != 8500 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestResetClearsDerivedState(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	today := core.NewDate(2024, 3, 5)

	if _, err := svc.Register(ctx, "u1", "Ann"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u1", today, "8000"); err != nil {
		t.Fatalf("log: %v", err)
	}

	if err := svc.ResetUser(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	stats, err := svc.UserStats(ctx, "u1", today)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 0 || stats.ThisWeek != 0 || stats.ActiveDays != 0 {
		t.Fatalf("reset must zero derived state: %+v", stats)
	}

	board, err := svc.WeeklyLeaderboard(ctx, today)
	if err != nil {
		t.Fatalf("weekly leaderboard: %v", err)
	}
	if len(board) != 0 {
		t.Fatalf("reset member must vanish from leaderboards: %+v", board)
	}
}

func TestLedgerVersionBumpsOnMutation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	v0 := svc.LedgerVersion()
	if _, err := svc.Register(ctx, "u1", "Ann"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u1", core.NewDate(2024, 3, 5), "100"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := svc.ResetUser(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := svc.LedgerVersion(); got != v0+3 {
		t.Fatalf("version = %d, want %d", got, v0+3)
	}

	// Failed mutations must not bump the version.
	if _, err := svc.LogSteps(ctx, "u1", core.NewDate(2024, 3, 5), "nope"); err == nil {
		t.Fatalf("expected rejection")
	}
	if got := svc.LedgerVersion(); got != v0+3 {
		t.Fatalf("version after rejection = %d, want %d", got, v0+3)
	}
}
