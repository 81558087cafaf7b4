// Package criteria evaluates declarative unlock conditions against an
// actor's progression snapshot.
package criteria

import (
	"fmt"
	"math"
	"strings"
)

type Kind string

const (
	KindXP                Kind = "xp"
	KindLevel             Kind = "level"
	KindSkillLevel        Kind = "skill_level"
	KindStreakDays        Kind = "streak_days"
	KindGameScore         Kind = "game_score"
	KindMissionsCompleted Kind = "missions_completed"
	KindGamesPlayed       Kind = "games_played"
	KindEventCount        Kind = "event_count"
)

type Operator string

const (
	OpGTE Operator = "gte"
	OpGT  Operator = "gt"
	OpEQ  Operator = "eq"
)

// Criterion is one weighted condition. SkillID, GameType and EventType
// narrow skill_level, game_score and event_count respectively.
type Criterion struct {
	Kind      Kind     `json:"kind" yaml:"kind"`
	Operator  Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Target    float64  `json:"target" yaml:"target"`
	Weight    float64  `json:"weight,omitempty" yaml:"weight,omitempty"`
	Required  bool     `json:"is_required,omitempty" yaml:"is_required,omitempty"`
	SkillID   string   `json:"skill_id,omitempty" yaml:"skill_id,omitempty"`
	GameType  string   `json:"game_type,omitempty" yaml:"game_type,omitempty"`
	EventType string   `json:"event_type,omitempty" yaml:"event_type,omitempty"`
}

// Snapshot is everything the evaluator may read about an actor.
type Snapshot struct {
	XP                int64
	Level             int
	GamesPlayed       int64
	StreakDays        int
	MissionsCompleted int64
	SkillLevels       map[string]int
	BestScores        map[string]float64
	EventCounts       map[string]int64
}

type CriterionResult struct {
	Criterion Criterion `json:"criterion"`
	Actual    float64   `json:"actual"`
	Progress  float64   `json:"progress"`
	Met       bool      `json:"met"`
}

type Result struct {
	Progress float64           `json:"progress"`
	Met      bool              `json:"met"`
	Criteria []CriterionResult `json:"criteria"`
}

// Validate reports the first malformed criterion.
func Validate(cs []Criterion) error {
	for i, c := range cs {
		switch c.Kind {
		case KindXP, KindLevel, KindStreakDays, KindMissionsCompleted, KindGamesPlayed:
		case KindSkillLevel:
			if strings.TrimSpace(c.SkillID) == "" {
				return fmt.Errorf("criterion %d: skill_level needs skill_id", i)
			}
		case KindGameScore:
			if strings.TrimSpace(c.GameType) == "" {
				return fmt.Errorf("criterion %d: game_score needs game_type", i)
			}
		case KindEventCount:
			if strings.TrimSpace(c.EventType) == "" {
				return fmt.Errorf("criterion %d: event_count needs event_type", i)
			}
		default:
			return fmt.Errorf("criterion %d: unknown kind %q", i, c.Kind)
		}
		switch c.Operator {
		case "", OpGTE, OpGT, OpEQ:
		default:
			return fmt.Errorf("criterion %d: unknown operator %q", i, c.Operator)
		}
		if c.Target < 0 || c.Weight < 0 {
			return fmt.Errorf("criterion %d: target and weight must be non-negative", i)
		}
	}
	return nil
}

// Evaluate computes weighted progress and the met flag. When any criterion
// is required only required ones decide met; otherwise all must hold. An
// empty set never unlocks.
func Evaluate(s Snapshot, cs []Criterion) Result {
	res := Result{Criteria: make([]CriterionResult, 0, len(cs))}
	if len(cs) == 0 {
		return res
	}

	var weighted, totalWeight float64
	anyRequired := false
	allMet, requiredMet := true, true

	for _, c := range cs {
		actual := actualFor(s, c)
		met := compare(c.Operator, actual, c.Target)
		progress := progressFor(c.Operator, actual, c.Target, met)
		res.Criteria = append(res.Criteria, CriterionResult{Criterion: c, Actual: actual, Progress: progress, Met: met})

		w := c.Weight
		if w <= 0 {
			w = 1
		}
		weighted += w * progress
		totalWeight += w

		if !met {
			allMet = false
		}
		if c.Required {
			anyRequired = true
			if !met {
				requiredMet = false
			}
		}
	}

	if totalWeight > 0 {
		res.Progress = math.Round(weighted/totalWeight*1000) / 1000
	}
	if anyRequired {
		res.Met = requiredMet
	} else {
		res.Met = allMet
	}
	return res
}

func actualFor(s Snapshot, c Criterion) float64 {
	switch c.Kind {
	case KindXP:
		return float64(s.XP)
	case KindLevel:
		return float64(s.Level)
	case KindGamesPlayed:
		return float64(s.GamesPlayed)
	case KindStreakDays:
		return float64(s.StreakDays)
	case KindMissionsCompleted:
		return float64(s.MissionsCompleted)
	case KindSkillLevel:
		return float64(s.SkillLevels[c.SkillID])
	case KindGameScore:
		return s.BestScores[c.GameType]
	case KindEventCount:
		return float64(s.EventCounts[c.EventType])
	default:
		return 0
	}
}

func compare(op Operator, actual, target float64) bool {
	switch op {
	case OpGT:
		return actual > target
	case OpEQ:
		return actual == target
	default:
		return actual >= target
	}
}

func progressFor(op Operator, actual, target float64, met bool) float64 {
	if met {
		return 1
	}
	if op == OpEQ || target <= 0 {
		return 0
	}
	p := actual / target
	if p < 0 {
		return 0
	}
	if p > 1 {
		// gt with actual == target lands here
		return 0.999
	}
	return p
}
