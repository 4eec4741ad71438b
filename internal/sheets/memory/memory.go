// Package memory provides an in-process EntryWriter used by the
// memory backend and by worker tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"passi/internal/core"
)

type row struct {
	entry core.DailyEntry
	name  string
}

type Store struct {
	mu   sync.Mutex
	rows []row

	// FailNext makes the next Append return an error, for tests.
	FailNext error
}

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference. An
// existing row for the same member and day is overwritten.
func (s *Store) Append(_ context.Context, entry core.DailyEntry, memberName string) (string, error) {
	if err := entry.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return "", err
	}
	for i, r := range s.rows {
		if r.entry.MemberID == entry.MemberID && r.entry.Day.Equal(entry.Day) {
			s.rows[i] = row{entry: entry, name: memberName}
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	s.rows = append(s.rows, row{entry: entry, name: memberName})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a snapshot of the stored rows as (day, name, steps).
func (s *Store) Rows() [][3]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][3]any, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, [3]any{r.entry.Day.Key(), r.name, r.entry.Steps})
	}
	return out
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
