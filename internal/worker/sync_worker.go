package worker

import (
	"context"
	"fmt"
	"log/slog"

	"passi/internal/amqp"
	"passi/internal/core"
	"passi/internal/sheets"
	"passi/internal/storage"
)

// SyncWorker exports step entries from SQLite to a Google Sheet. The
// sheet row always reflects the latest stored value for a member-day,
// so replaying a stale message is harmless.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	sheets    sheets.EntryWriter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, sheets sheets.EntryWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		sheets:    sheets,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single entry sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"member_id", msg.MemberID,
		"day", msg.Day,
		"version", msg.Version)

	return w.syncEntryToSheets(ctx, msg.MemberID, msg.Day)
}

// ProcessPendingEntries exports any entries that have not been synced
// yet. This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingEntries(ctx context.Context) error {
	pending, err := w.storage.PendingSyncEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending entries: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, p := range pending {
		if err := w.syncEntryToSheets(ctx, p.MemberID, p.Day); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry",
				"member_id", p.MemberID,
				"day", p.Day,
				"error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck drains the sync backlog at worker startup. This
// recovers from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.PendingSyncEntries(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending entries for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending entries on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		if err := w.syncEntryToSheets(ctx, p.MemberID, p.Day); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry during startup",
				"member_id", p.MemberID,
				"day", p.Day,
				"error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

func (w *SyncWorker) syncEntryToSheets(ctx context.Context, memberID, day string) error {
	row, err := w.storage.ExportRowFor(ctx, memberID, day)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, memberID, day); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"member_id", memberID, "day", day, "error", markErr)
		}
		return fmt.Errorf("load export row: %w", err)
	}

	date, err := core.ParseDate(row.Day)
	if err != nil {
		return fmt.Errorf("parse entry day %q: %w", row.Day, err)
	}

	entry := core.DailyEntry{
		MemberID: memberID,
		Day:      date,
		Steps:    row.Steps,
	}

	ref, err := w.sheets.Append(ctx, entry, row.MemberName)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, memberID, day); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"member_id", memberID, "day", day, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, memberID, day); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced",
			"member_id", memberID, "day", day, "error", err)
		// The export itself worked, so the message is done.
	}

	slog.InfoContext(ctx, "Successfully synced entry",
		"member_id", memberID,
		"day", day,
		"steps", row.Steps,
		"sheets_ref", ref)

	return nil
}
