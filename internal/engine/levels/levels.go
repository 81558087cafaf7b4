// Package levels derives actor and skill levels from cumulative experience.
package levels

import (
	"errors"
	"fmt"
	"sort"
)

// Table is a monotonic step table. thresholds[i] is the xp required to
// reach level i+1, so thresholds[0] is always 0.
type Table struct {
	thresholds []int64
}

var ErrEmptyTable = errors.New("level table is empty")

func NewTable(thresholds []int64) (Table, error) {
	if len(thresholds) == 0 {
		return Table{}, ErrEmptyTable
	}
	if thresholds[0] != 0 {
		return Table{}, fmt.Errorf("level 1 must require 0 xp, got %d", thresholds[0])
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] < thresholds[i-1] {
			return Table{}, fmt.Errorf("level %d requires %d xp, less than level %d (%d)", i+1, thresholds[i], i, thresholds[i-1])
		}
	}
	cp := make([]int64, len(thresholds))
	copy(cp, thresholds)
	return Table{thresholds: cp}, nil
}

// MustTable panics on an invalid table. Only for defaults and tests.
func MustTable(thresholds ...int64) Table {
	t, err := NewTable(thresholds)
	if err != nil {
		panic(err)
	}
	return t
}

func DefaultTable() Table {
	return MustTable(0, 100, 250, 500, 1000, 1750, 2750, 4000, 5500, 7500, 10000, 13000, 16500, 20500, 25000)
}

// LevelFor returns the largest level whose threshold is <= xp. Negative xp
// is treated as 0.
func (t Table) LevelFor(xp int64) int {
	if len(t.thresholds) == 0 {
		return 1
	}
	if xp < 0 {
		xp = 0
	}
	return sort.Search(len(t.thresholds), func(i int) bool { return t.thresholds[i] > xp })
}

// XPRequired returns the threshold for level, and false when level is out of range.
func (t Table) XPRequired(level int) (int64, bool) {
	if level < 1 || level > len(t.thresholds) {
		return 0, false
	}
	return t.thresholds[level-1], true
}

func (t Table) MaxLevel() int { return len(t.thresholds) }

func (t Table) Thresholds() []int64 {
	out := make([]int64, len(t.thresholds))
	copy(out, t.thresholds)
	return out
}

// Progress describes where xp sits between the current and the next level.
type Progress struct {
	Level        int   `json:"level"`
	XP           int64 `json:"xp"`
	LevelFloorXP int64 `json:"level_floor_xp"`
	NextLevelXP  int64 `json:"next_level_xp,omitempty"`
	IsMaxLevel   bool  `json:"is_max_level"`
}

func (t Table) ProgressFor(xp int64) Progress {
	lvl := t.LevelFor(xp)
	p := Progress{Level: lvl, XP: xp}
	p.LevelFloorXP, _ = t.XPRequired(lvl)
	if next, ok := t.XPRequired(lvl + 1); ok {
		p.NextLevelXP = next
	} else {
		p.IsMaxLevel = true
	}
	return p
}

// SkillCurve is the flat per-skill curve: every xp_per_level points is one level.
type SkillCurve struct {
	XPPerLevel int64
	MaxLevel   int // 0 means unbounded
}

// Apply derives (level, xp into level, mastery percent) from total skill xp.
func (c SkillCurve) Apply(totalXP int64) (level int, currentXP int64, mastery int) {
	per := c.XPPerLevel
	if per <= 0 {
		per = 100
	}
	if totalXP < 0 {
		totalXP = 0
	}
	level = int(totalXP / per)
	currentXP = totalXP % per
	if c.MaxLevel > 0 && level >= c.MaxLevel {
		level = c.MaxLevel
		currentXP = 0
	}
	if c.MaxLevel > 0 {
		mastery = level * 100 / c.MaxLevel
	}
	return level, currentXP, mastery
}
