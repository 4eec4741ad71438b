package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"passi/internal/core"
)

func TestSaveMemberKeepsRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, id := range []string{"u1", "u2", "u3"} {
		if err := s.SaveMember(ctx, core.Member{ID: id, Name: "n-" + id, JoinedAt: time.Now()}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	// Re-registering u1 must not move it to the back.
	if err := s.SaveMember(ctx, core.Member{ID: "u1", Name: "renamed", JoinedAt: time.Now()}); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	members, err := s.Members(ctx)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	want := []string{"u1", "u2", "u3"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
	if members[0].Name != "renamed" {
		t.Fatalf("re-registration must overwrite the display name, got %q", members[0].Name)
	}
}

func TestMemberNotFound(t *testing.T) {
	s := New()
	_, err := s.Member(context.Background(), "ghost")
	if !errors.Is(err, core.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestUpsertEntryCreateThenOverwrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	day := core.NewDate(2024, 3, 4)

	if err := s.SaveMember(ctx, core.Member{ID: "u1", Name: "Ann", JoinedAt: time.Now()}); err != nil {
		t.Fatalf("save member: %v", err)
	}

	created, err := s.UpsertEntry(ctx, core.DailyEntry{MemberID: "u1", Day: day, Steps: 8000})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Fatalf("first upsert should create")
	}

	created, err = s.UpsertEntry(ctx, core.DailyEntry{MemberID: "u1", Day: day, Steps: 9000})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatalf("second upsert should overwrite, not create")
	}

	entries, err := s.Entries(ctx, "u1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry per day, got %d", len(entries))
	}
	if entries[0].Steps != 9000 {
		t.Fatalf("overwrite should keep the second value, got %d", entries[0].Steps)
	}
}

func TestUpsertEntryRequiresRegistration(t *testing.T) {
	s := New()
	_, err := s.UpsertEntry(context.Background(), core.DailyEntry{
		MemberID: "ghost", Day: core.NewDate(2024, 3, 4), Steps: 100,
	})
	if !errors.Is(err, core.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestUpsertEntryRejectsNegativeSteps(t *testing.T) {
	ctx := context.Background()
	s := New()
	day := core.NewDate(2024, 3, 4)

	if err := s.SaveMember(ctx, core.Member{ID: "u1", Name: "Ann", JoinedAt: time.Now()}); err != nil {
		t.Fatalf("save member: %v", err)
	}
	if _, err := s.UpsertEntry(ctx, core.DailyEntry{MemberID: "u1", Day: day, Steps: -5}); !errors.Is(err, core.ErrInvalidStepCount) {
		t.Fatalf("expected ErrInvalidStepCount, got %v", err)
	}

	// Ledger must be unchanged after a rejection.
	if _, ok, _ := s.Entry(ctx, "u1", day); ok {
		t.Fatalf("rejected write must not leave an entry behind")
	}
}

func TestResetEntriesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.SaveMember(ctx, core.Member{ID: "u1", Name: "Ann", JoinedAt: time.Now()}); err != nil {
		t.Fatalf("save member: %v", err)
	}
	if _, err := s.UpsertEntry(ctx, core.DailyEntry{MemberID: "u1", Day: core.NewDate(2024, 3, 4), Steps: 100}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.ResetEntries(ctx, "u1"); err != nil {
			t.Fatalf("reset %d: %v", i, err)
		}
	}
	entries, err := s.Entries(ctx, "u1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger after reset, got %d entries", len(entries))
	}
}
