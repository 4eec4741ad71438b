package sheets

import (
	"context"

	"passi/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryWriter upserts one member-day step row on the export sheet.
	// A second write for the same member and day replaces the earlier
	// row instead of appending a duplicate.
	EntryWriter interface {
		Append(ctx context.Context, entry core.DailyEntry, memberName string) (rowRef string, err error)
	}
)
