package store

import (
	"context"

	"passi/internal/core"
)

// Ports for ledger storage adapters.
type (
	MemberStore interface {
		// SaveMember creates or overwrites the member record. Re-saving
		// refreshes the display name and join date but never touches entries.
		SaveMember(ctx context.Context, m core.Member) error

		// Member returns core.ErrNotRegistered for unknown ids.
		Member(ctx context.Context, id string) (core.Member, error)

		// Members returns all registered members in registration order.
		Members(ctx context.Context) ([]core.Member, error)
	}

	EntryStore interface {
		// UpsertEntry writes one member-day row. If a row for the same
		// (member, day) exists its steps are replaced in place and
		// created is false; otherwise a new row is appended.
		UpsertEntry(ctx context.Context, e core.DailyEntry) (created bool, err error)

		// Entry returns the entry for one member-day, if present.
		Entry(ctx context.Context, memberID string, day core.Date) (core.DailyEntry, bool, error)

		// Entries returns all of a member's rows in insertion order.
		Entries(ctx context.Context, memberID string) ([]core.DailyEntry, error)

		// ResetEntries discards all of the member's rows. Idempotent.
		ResetEntries(ctx context.Context, memberID string) error
	}

	// Store is the combined surface the service operates on.
	Store interface {
		MemberStore
		EntryStore
	}
)
