package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"passi/internal/core"
	"passi/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists members and daily entries, one row per
// member-day. Aggregates are never stored; they are recomputed from
// the entry rows on read.
type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveMember implements store.MemberStore. Re-registering refreshes the
// display name and join date; the rowid (and with it registration
// order) is preserved.
func (r *SQLiteRepository) SaveMember(ctx context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO members (id, display_name, joined_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			joined_at = excluded.joined_at`,
		m.ID, m.Name, m.JoinedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save member: %w", err)
	}

	slog.InfoContext(ctx, "Member saved to SQLite", "member_id", m.ID, "name", m.Name)
	return nil
}

func (r *SQLiteRepository) Member(ctx context.Context, id string) (core.Member, error) {
	var m core.Member
	var joined string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, display_name, joined_at FROM members WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &joined)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, core.ErrNotRegistered
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("get member: %w", err)
	}
	m.JoinedAt, _ = time.Parse(time.RFC3339, joined)
	return m, nil
}

// Members returns all members ordered by rowid, which is insertion
// (registration) order: the ON CONFLICT upsert in SaveMember keeps the
// original rowid.
func (r *SQLiteRepository) Members(ctx context.Context) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, display_name, joined_at FROM members ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []core.Member
	for rows.Next() {
		var m core.Member
		var joined string
		if err := rows.Scan(&m.ID, &m.Name, &joined); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.JoinedAt, _ = time.Parse(time.RFC3339, joined)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertEntry implements store.EntryStore with the find-or-create
// semantics of the ledger: replace in place when the member-day row
// exists, append otherwise. Every write re-queues the row for export.
func (r *SQLiteRepository) UpsertEntry(ctx context.Context, e core.DailyEntry) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}

	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM members WHERE id = ?`, e.MemberID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, core.ErrNotRegistered
	}
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}

	var entryID int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM daily_entries WHERE member_id = ? AND day = ?`,
		e.MemberID, e.Day.Key()).Scan(&entryID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO daily_entries (member_id, day, steps) VALUES (?, ?, ?)`,
			e.MemberID, e.Day.Key(), e.Steps); err != nil {
			return false, fmt.Errorf("insert entry: %w", err)
		}
		slog.InfoContext(ctx, "Daily entry created",
			"member_id", e.MemberID, "day", e.Day.Key(), "steps", e.Steps)
		return true, nil
	case err != nil:
		return false, fmt.Errorf("find entry: %w", err)
	default:
		if _, err := r.db.ExecContext(ctx, `
			UPDATE daily_entries
			SET steps = ?, version = version + 1, sync_status = 'pending',
			    updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			e.Steps, entryID); err != nil {
			return false, fmt.Errorf("update entry: %w", err)
		}
		slog.InfoContext(ctx, "Daily entry overwritten",
			"member_id", e.MemberID, "day", e.Day.Key(), "steps", e.Steps)
		return false, nil
	}
}

func (r *SQLiteRepository) Entry(ctx context.Context, memberID string, day core.Date) (core.DailyEntry, bool, error) {
	var steps int
	err := r.db.QueryRowContext(ctx,
		`SELECT steps FROM daily_entries WHERE member_id = ? AND day = ?`,
		memberID, day.Key()).Scan(&steps)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailyEntry{}, false, nil
	}
	if err != nil {
		return core.DailyEntry{}, false, fmt.Errorf("get entry: %w", err)
	}
	return core.DailyEntry{MemberID: memberID, Day: day, Steps: steps}, true, nil
}

func (r *SQLiteRepository) Entries(ctx context.Context, memberID string) ([]core.DailyEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT day, steps FROM daily_entries WHERE member_id = ? ORDER BY id`,
		memberID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []core.DailyEntry
	for rows.Next() {
		var dayKey string
		var steps int
		if err := rows.Scan(&dayKey, &steps); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		day, err := time.Parse("2006-01-02", dayKey)
		if err != nil {
			return nil, fmt.Errorf("parse day %q: %w", dayKey, err)
		}
		out = append(out, core.DailyEntry{MemberID: memberID, Day: core.DateOf(day), Steps: steps})
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ResetEntries(ctx context.Context, memberID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM daily_entries WHERE member_id = ?`, memberID)
	if err != nil {
		return fmt.Errorf("reset entries: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		slog.InfoContext(ctx, "Ledger reset", "member_id", memberID, "rows", n)
	}
	return nil
}

// PendingEntry identifies a member-day row awaiting export.
type PendingEntry struct {
	MemberID string
	Day      string
	Version  int64
}

// ExportRow is the denormalized row the sheets worker appends.
type ExportRow struct {
	Day        string
	MemberName string
	Steps      int
	Version    int64
}

// PendingSyncEntries returns up to limit rows still waiting for export.
func (r *SQLiteRepository) PendingSyncEntries(ctx context.Context, limit int) ([]PendingEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT member_id, day, version FROM daily_entries
		WHERE sync_status IN ('pending', 'error') ORDER BY updated_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending entries: %w", err)
	}
	defer rows.Close()

	var out []PendingEntry
	for rows.Next() {
		var p PendingEntry
		if err := rows.Scan(&p.MemberID, &p.Day, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExportRowFor loads the current state of one member-day row joined
// with the member name. The worker always exports the latest steps
// value, even if the row was overwritten after the message was queued.
func (r *SQLiteRepository) ExportRowFor(ctx context.Context, memberID, day string) (ExportRow, error) {
	var row ExportRow
	err := r.db.QueryRowContext(ctx, `
		SELECT e.day, m.display_name, e.steps, e.version
		FROM daily_entries e JOIN members m ON m.id = e.member_id
		WHERE e.member_id = ? AND e.day = ?`,
		memberID, day).Scan(&row.Day, &row.MemberName, &row.Steps, &row.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return ExportRow{}, fmt.Errorf("entry %s/%s not found", memberID, day)
	}
	if err != nil {
		return ExportRow{}, fmt.Errorf("get export row: %w", err)
	}
	return row, nil
}

// MarkSynced flags a row as exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, memberID, day string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE daily_entries SET sync_status = 'synced'
		WHERE member_id = ? AND day = ?`, memberID, day); err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	slog.InfoContext(ctx, "Entry marked as synced", "member_id", memberID, "day", day)
	return nil
}

// MarkSyncError flags a row whose export failed; it stays visible to
// the periodic retry pass.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, memberID, day string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE daily_entries SET sync_status = 'error'
		WHERE member_id = ? AND day = ?`, memberID, day); err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	slog.WarnContext(ctx, "Entry marked with sync error", "member_id", memberID, "day", day)
	return nil
}
