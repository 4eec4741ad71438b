package memory

import (
	"context"
	"sync"
	"time"

	"passi/internal/core"
	"passi/internal/store"
)

// Store keeps registry and ledger entirely in memory for the lifetime
// of the process. It is the reference backend: one instance per group,
// no ambient global state.
type Store struct {
	mu      sync.Mutex
	members map[string]core.Member
	order   []string // registration order of member ids
	entries map[string][]core.DailyEntry
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		members: make(map[string]core.Member),
		entries: make(map[string][]core.DailyEntry),
		now:     time.Now,
	}
}

// NewWithClock is used by tests that need a fixed join date.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

func (s *Store) SaveMember(_ context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[m.ID]; !exists {
		s.order = append(s.order, m.ID)
	}
	s.members[m.ID] = m
	return nil
}

func (s *Store) Member(_ context.Context, id string) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return core.Member{}, core.ErrNotRegistered
	}
	return m, nil
}

func (s *Store) Members(_ context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Member, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.members[id])
	}
	return out, nil
}

func (s *Store) UpsertEntry(_ context.Context, e core.DailyEntry) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[e.MemberID]; !ok {
		return false, core.ErrNotRegistered
	}
	rows := s.entries[e.MemberID]
	for i, row := range rows {
		if row.Day.Equal(e.Day) {
			rows[i].Steps = e.Steps
			return false, nil
		}
	}
	s.entries[e.MemberID] = append(rows, e)
	return true, nil
}

func (s *Store) Entry(_ context.Context, memberID string, day core.Date) (core.DailyEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.entries[memberID] {
		if row.Day.Equal(day) {
			return row, true, nil
		}
	}
	return core.DailyEntry{}, false, nil
}

func (s *Store) Entries(_ context.Context, memberID string) ([]core.DailyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.entries[memberID]
	out := make([]core.DailyEntry, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) ResetEntries(_ context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, memberID)
	return nil
}
