package core

import "sort"

type (
	// Score is one member's step total for a leaderboard window.
	Score struct {
		Name  string
		Steps int
	}

	// RankedEntry is a leaderboard row. Ranks are 1-based and
	// contiguous; position in the sorted sequence is the rank.
	RankedEntry struct {
		Rank  int
		Name  string
		Steps int
	}

	// MemberStats is the personal summary returned for /mystats.
	MemberStats struct {
		Today        int
		ThisWeek     int
		ThisMonth    int
		Total        int
		DailyAverage int
		ActiveDays   int
	}
)

// Rank sorts scores by steps descending and assigns ranks. Ties keep
// input order (registry iteration order), so the earlier-registered
// member ranks first. Members with zero or negative steps are omitted
// entirely rather than listed with rank and zero.
func Rank(scores []Score) []RankedEntry {
	filtered := make([]Score, 0, len(scores))
	for _, s := range scores {
		if s.Steps > 0 {
			filtered = append(filtered, s)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Steps > filtered[j].Steps
	})

	ranked := make([]RankedEntry, len(filtered))
	for i, s := range filtered {
		ranked[i] = RankedEntry{Rank: i + 1, Name: s.Name, Steps: s.Steps}
	}
	return ranked
}
