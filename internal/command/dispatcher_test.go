package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"passi/internal/services"
	"passi/internal/store/memory"
)

func newTestDispatcher() *Dispatcher {
	clock := func() time.Time {
		return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	}
	svc := services.NewStepsServiceWithClock(memory.NewWithClock(clock), nil, clock)
	return NewDispatcher(svc)
}

func TestDispatchRegisterAndLog(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher()

	reply := d.Dispatch(ctx, "u1", "Ann", "/register")
	if !strings.Contains(reply, "Ann") {
		t.Errorf("register reply = %q", reply)
	}

	reply = d.Dispatch(ctx, "u1", "Ann", "/steps 8000")
	if !strings.Contains(reply, "Logged 8000 steps") {
		t.Errorf("first log reply = %q", reply)
	}

	reply = d.Dispatch(ctx, "u1", "Ann", "/steps 9000")
	if !strings.Contains(reply, "Updated today's entry to 9000") {
		t.Errorf("overwrite reply = %q", reply)
	}
}

func TestDispatchLeaderboards(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher()

	d.Dispatch(ctx, "u1", "Ann", "/register")
	d.Dispatch(ctx, "u2", "Ben", "/register")
	d.Dispatch(ctx, "u1", "Ann", "/steps 8000")
	d.Dispatch(ctx, "u2", "Ben", "/steps 9000")

	for _, text := range []string{"/daily", "/leaderboard", "/weekly", "/monthly"} {
		reply := d.Dispatch(ctx, "u1", "Ann", text)
		if !strings.Contains(reply, "1. Ben - 9000 steps") {
			t.Errorf("%s reply missing leader: %q", text, reply)
		}
		if !strings.Contains(reply, "2. Ann - 8000 steps") {
			t.Errorf("%s reply missing runner-up: %q", text, reply)
		}
	}
}

func TestDispatchEmptyLeaderboard(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher()
	d.Dispatch(ctx, "u1", "Ann", "/register")

	reply := d.Dispatch(ctx, "u1", "Ann", "/daily")
	if !strings.Contains(reply, "No steps logged yet") {
		t.Errorf("empty board reply = %q", reply)
	}
}

func TestDispatchStats(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher()

	d.Dispatch(ctx, "u1", "Ann", "/register")
	d.Dispatch(ctx, "u1", "Ann", "/steps 8000")

	reply := d.Dispatch(ctx, "u1", "Ann", "/mystats")
	for _, want := range []string{"Today: 8000", "This week: 8000", "Total: 8000", "Daily average: 8000 (1 active days)"} {
		if !strings.Contains(reply, want) {
			t.Errorf("stats reply missing %q: %q", want, reply)
		}
	}
}

func TestDispatchTypedFailures(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"steps before register", "/steps 8000", "not registered"},
		{"stats before register", "/mystats", "not registered"},
		{"reset before register", "/reset", "not registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := d.Dispatch(ctx, "u9", "Zoe", tt.text)
			if !strings.Contains(reply, tt.want) {
				t.Errorf("reply = %q, want substring %q", reply, tt.want)
			}
		})
	}

	d.Dispatch(ctx, "u1", "Ann", "/register")
	for _, text := range []string{"/steps", "/steps abc", "/steps -5"} {
		reply := d.Dispatch(ctx, "u1", "Ann", text)
		if !strings.Contains(reply, "non-negative whole number") {
			t.Errorf("%s reply = %q", text, reply)
		}
	}
}

func TestDispatchResetClearsEntries(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher()

	d.Dispatch(ctx, "u1", "Ann", "/register")
	d.Dispatch(ctx, "u1", "Ann", "/steps 8000")

	reply := d.Dispatch(ctx, "u1", "Ann", "/reset")
	if !strings.Contains(reply, "cleared") {
		t.Errorf("reset reply = %q", reply)
	}

	reply = d.Dispatch(ctx, "u1", "Ann", "/mystats")
	if !strings.Contains(reply, "Total: 0") {
		t.Errorf("stats after reset = %q", reply)
	}
}

func TestDispatchUnknownIsNoOp(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher()

	for _, text := range []string{"/dance", "hello everyone", ""} {
		if reply := d.Dispatch(ctx, "u1", "Ann", text); reply != "" {
			t.Errorf("Dispatch(%q) = %q, want empty", text, reply)
		}
	}
}

func TestDispatchHelp(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher()

	reply := d.Dispatch(ctx, "u1", "Ann", "/help")
	for _, verb := range []string{"/register", "/steps", "/daily", "/weekly", "/monthly", "/mystats", "/reset"} {
		if !strings.Contains(reply, verb) {
			t.Errorf("help missing %s", verb)
		}
	}
}
