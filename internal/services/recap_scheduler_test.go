package services

import (
	"context"
	"testing"
	"time"

	"passi/internal/amqp"
	"passi/internal/core"
)

type capturingPublisher struct {
	messages []*amqp.RecapMessage
	err      error
}

func (p *capturingPublisher) PublishRecap(_ context.Context, msg *amqp.RecapMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturingPublisher) byWindow(window Window) *amqp.RecapMessage {
	for _, msg := range p.messages {
		if msg.Window == string(window) {
			return msg
		}
	}
	return nil
}

func newRecapFixture(t *testing.T) (*StepsService, *capturingPublisher) {
	t.Helper()
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "u1", "Ann"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "u2", "Ben"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u1", core.NewDate(2024, 3, 5), "8000"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := svc.LogSteps(ctx, "u2", core.NewDate(2024, 3, 4), "6000"); err != nil {
		t.Fatalf("log: %v", err)
	}

	return svc, &capturingPublisher{}
}

func TestRecapSchedulerPublishesAllWindowsOnFirstRun(t *testing.T) {
	ctx := context.Background()
	svc, pub := newRecapFixture(t)
	scheduler := NewRecapScheduler(svc, pub)
	now := time.Date(2024, 3, 5, 21, 0, 0, 0, time.UTC)

	published, err := scheduler.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if published != 3 {
		t.Fatalf("published = %d, want 3", published)
	}

	daily := pub.byWindow(DailyWindow)
	if daily == nil {
		t.Fatal("missing daily recap")
	}
	if daily.Label != "2024-03-05" {
		t.Errorf("daily label = %q", daily.Label)
	}
	if len(daily.Entries) != 1 || daily.Entries[0].Name != "Ann" || daily.Entries[0].Steps != 8000 {
		t.Errorf("daily entries = %+v", daily.Entries)
	}

	weekly := pub.byWindow(WeeklyWindow)
	if weekly == nil {
		t.Fatal("missing weekly recap")
	}
	if weekly.Label != "week of 2024-03-04" {
		t.Errorf("weekly label = %q", weekly.Label)
	}
	if len(weekly.Entries) != 2 {
		t.Fatalf("weekly entries = %+v", weekly.Entries)
	}
	if weekly.Entries[0].Name != "Ann" || weekly.Entries[0].Rank != 1 {
		t.Errorf("weekly top = %+v", weekly.Entries[0])
	}
	if weekly.Entries[1].Name != "Ben" || weekly.Entries[1].Rank != 2 {
		t.Errorf("weekly second = %+v", weekly.Entries[1])
	}

	monthly := pub.byWindow(MonthlyWindow)
	if monthly == nil {
		t.Fatal("missing monthly recap")
	}
	if monthly.Label != "March 2024" {
		t.Errorf("monthly label = %q", monthly.Label)
	}
}

func TestRecapSchedulerSkipsAlreadyPublishedWindows(t *testing.T) {
	ctx := context.Background()
	svc, pub := newRecapFixture(t)
	scheduler := NewRecapScheduler(svc, pub)

	evening := time.Date(2024, 3, 5, 21, 0, 0, 0, time.UTC)
	if _, err := scheduler.ProcessDue(ctx, evening); err != nil {
		t.Fatalf("first run: %v", err)
	}
	pub.messages = nil

	// Same day again: nothing is due.
	published, err := scheduler.ProcessDue(ctx, evening.Add(time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if published != 0 {
		t.Fatalf("published = %d, want 0", published)
	}

	// Next day, same week and month: only the daily recap rolls over.
	published, err = scheduler.ProcessDue(ctx, evening.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if published != 1 {
		t.Fatalf("published = %d, want 1", published)
	}
	if pub.byWindow(DailyWindow) == nil {
		t.Error("expected daily recap on day rollover")
	}
}

func TestRecapSchedulerRetriesFailedWindow(t *testing.T) {
	ctx := context.Background()
	svc, pub := newRecapFixture(t)
	scheduler := NewRecapScheduler(svc, pub, DailyWindow)
	now := time.Date(2024, 3, 5, 21, 0, 0, 0, time.UTC)

	pub.err = context.DeadlineExceeded
	published, err := scheduler.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if published != 0 {
		t.Fatalf("published = %d, want 0", published)
	}

	// Publish failure must not mark the window as done.
	pub.err = nil
	published, err = scheduler.ProcessDue(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if published != 1 {
		t.Fatalf("published = %d, want 1", published)
	}
}
