package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Date is a canonical calendar-day key. Two timestamps on the same
	// calendar day always map to the same Date, regardless of time-of-day.
	Date struct {
		time.Time
	}

	// Member is a registered participant of the step group.
	Member struct {
		ID       string
		Name     string
		JoinedAt time.Time
	}

	// DailyEntry is one member's step count for one calendar day.
	// At most one entry exists per (MemberID, Day) pair.
	DailyEntry struct {
		MemberID string
		Day      Date
		Steps    int
	}
)

var (
	ErrNotRegistered    = errors.New("member not registered")
	ErrInvalidStepCount = errors.New("invalid step count")
	ErrEmptyMemberID    = errors.New("empty member id")
)

// NewDate creates a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a canonical day key such as "2024-03-04".
func ParseDate(key string) (Date, error) {
	t, err := time.ParseInLocation("2006-01-02", key, time.UTC)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Key returns the canonical day key, e.g. "2024-03-04".
func (d Date) Key() string {
	return d.Format("2006-01-02")
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.AddDate(0, 0, n))
}

// Equal reports whether two dates fall on the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Key() == other.Key()
}

// SameMonth reports whether two dates share year and month.
func (d Date) SameMonth(other Date) bool {
	return d.Year() == other.Year() && d.Month() == other.Month()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrEmptyMemberID
	}
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("empty member name")
	}
	return nil
}

func (e DailyEntry) Validate() error {
	if strings.TrimSpace(e.MemberID) == "" {
		return ErrEmptyMemberID
	}
	if err := e.Day.Validate(); err != nil {
		return err
	}
	if e.Steps < 0 {
		return ErrInvalidStepCount
	}
	return nil
}
