// Package streak holds the day-granularity streak state machine. Days are
// ISO date strings ("2006-01-02") already resolved in the configured zone,
// so the functions here never read a clock.
package streak

import (
	"fmt"
	"time"
)

const DayLayout = "2006-01-02"

type State struct {
	Current       int
	Longest       int
	LastPlayedOn  string
	LastClaimedOn string
}

type Reward struct {
	Day   int   `json:"day" yaml:"day"`
	XP    int64 `json:"xp" yaml:"xp"`
	Coins int64 `json:"coins" yaml:"coins"`
}

// DefaultTable is the escalating 7-entry claim table.
func DefaultTable() []Reward {
	return []Reward{
		{Day: 1, XP: 5, Coins: 5},
		{Day: 2, XP: 10, Coins: 10},
		{Day: 3, XP: 15, Coins: 25},
		{Day: 4, XP: 20, Coins: 30},
		{Day: 5, XP: 25, Coins: 40},
		{Day: 6, XP: 30, Coins: 50},
		{Day: 7, XP: 50, Coins: 100},
	}
}

// Today resolves the day key of now in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DayLayout)
}

// DaysBetween returns b-a in whole calendar days.
func DaysBetween(a, b string) (int, error) {
	ta, err := time.Parse(DayLayout, a)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", a, err)
	}
	tb, err := time.Parse(DayLayout, b)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", b, err)
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// Decay zeroes the current streak when more than one day has passed since
// the last play. It reports whether anything changed.
func Decay(s State, today string) (State, bool) {
	if s.Current == 0 || s.LastPlayedOn == "" {
		return s, false
	}
	gap, err := DaysBetween(s.LastPlayedOn, today)
	if err != nil || gap <= 1 {
		return s, false
	}
	s.Current = 0
	return s, true
}

// RecordPlay advances the streak for a qualifying play on today.
func RecordPlay(s State, today string) (State, bool) {
	if s.LastPlayedOn == today {
		return s, false
	}
	gap := -1
	if s.LastPlayedOn != "" {
		if g, err := DaysBetween(s.LastPlayedOn, today); err == nil {
			gap = g
		}
	}
	if gap == 1 && s.Current > 0 {
		s.Current++
	} else {
		s.Current = 1
	}
	s.LastPlayedOn = today
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	return s, true
}

func CanClaim(s State, today string) bool {
	return s.LastClaimedOn != today
}

// ClaimReward picks the entry for the current streak, clamped to the table.
// A streak of 0 still earns the day-one entry.
func ClaimReward(table []Reward, current int) Reward {
	if len(table) == 0 {
		return Reward{}
	}
	idx := current
	if idx < 1 {
		idx = 1
	}
	if idx > len(table) {
		idx = len(table)
	}
	return table[idx-1]
}

// ValidateTable requires days 1..n in order with non-negative amounts.
func ValidateTable(table []Reward) error {
	if len(table) == 0 {
		return fmt.Errorf("streak reward table is empty")
	}
	for i, r := range table {
		if r.Day != i+1 {
			return fmt.Errorf("streak reward %d: day must be %d, got %d", i, i+1, r.Day)
		}
		if r.XP < 0 || r.Coins < 0 {
			return fmt.Errorf("streak reward day %d: negative amount", r.Day)
		}
	}
	return nil
}
