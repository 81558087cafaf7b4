// Package reward turns a completed activity into an xp/coin/skill delta.
// Everything here is pure: the same config and input always give the same reward.
package reward

import (
	"math"
	"time"
)

type StreakBonus struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	BonusPerDay float64 `json:"bonus_per_day" yaml:"bonus_per_day"` // percent per streak day
	MaxBonus    float64 `json:"max_bonus" yaml:"max_bonus"`         // percent cap
}

// GameConfig is the reward policy for one game type.
type GameConfig struct {
	GameType              string
	XPBase                float64
	XPMultiplier          float64
	CoinsBase             float64
	CoinsMultiplier       float64
	DifficultyMultipliers map[string]float64
	StreakBonus           StreakBonus
	SkillCategories       []string
}

type Input struct {
	EventType       string
	GameType        string
	Score           float64
	Difficulty      string
	StreakDays      int
	BonusMultiplier float64 // 0 means no explicit bonus
}

type SkillXP struct {
	SkillID string `json:"skill_id"`
	XP      int64  `json:"xp"`
}

const (
	BonusDifficulty   = "difficulty"
	BonusStreak       = "streak"
	BonusExplicit     = "bonus"
	BonusFastDecision = "fast_decision"
	BonusBoost        = "boost"
)

// Bonus is one line of the breakdown shown next to a reward.
type Bonus struct {
	Kind       string  `json:"kind"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Percent    float64 `json:"percent,omitempty"`
	AppliesTo  string  `json:"applies_to"`
}

type Reward struct {
	XP      int64     `json:"xp"`
	Coins   int64     `json:"coins"`
	SkillXP []SkillXP `json:"skill_xp,omitempty"`
	Bonuses []Bonus   `json:"bonuses,omitempty"`
}

const (
	coinsPerScorePoint   = 0.05
	fallbackXPPerScore   = 0.1
	skillShareOfXP       = 0.1
	FastDecisionCutoff   = 30 * time.Second
	FastDecisionXPFactor = 1.2
)

// ScoreMultiplier damps large scores logarithmically.
func ScoreMultiplier(score float64) float64 {
	if score < 0 {
		score = 0
	}
	return math.Max(0.1, math.Log10(score+1)/2)
}

// Compute applies cfg to in. A nil cfg selects the minimal fallback policy.
func Compute(cfg *GameConfig, in Input) Reward {
	score := in.Score
	if score < 0 {
		score = 0
	}
	if cfg == nil {
		return Reward{
			XP:    round(score * fallbackXPPerScore),
			Coins: round(score * coinsPerScorePoint),
		}
	}

	var bonuses []Bonus
	xpMult := positiveOr(cfg.XPMultiplier, 1)
	coinsMult := positiveOr(cfg.CoinsMultiplier, 1)

	if in.Difficulty != "" {
		if dm, ok := cfg.DifficultyMultipliers[in.Difficulty]; ok && dm > 0 {
			xpMult *= dm
			coinsMult *= dm
			bonuses = append(bonuses, Bonus{Kind: BonusDifficulty, Multiplier: dm, AppliesTo: "xp,coins"})
		}
	}

	// streak bonus applies to xp only
	if cfg.StreakBonus.Enabled && in.StreakDays > 0 {
		pct := math.Min(float64(in.StreakDays)*cfg.StreakBonus.BonusPerDay, cfg.StreakBonus.MaxBonus)
		if pct > 0 {
			xpMult *= 1 + pct/100
			bonuses = append(bonuses, Bonus{Kind: BonusStreak, Percent: pct, AppliesTo: "xp"})
		}
	}

	if in.BonusMultiplier > 0 && in.BonusMultiplier != 1 {
		xpMult *= in.BonusMultiplier
		coinsMult *= in.BonusMultiplier
		bonuses = append(bonuses, Bonus{Kind: BonusExplicit, Multiplier: in.BonusMultiplier, AppliesTo: "xp,coins"})
	}

	xp := round((cfg.XPBase + score*ScoreMultiplier(score)) * xpMult)
	coins := round((cfg.CoinsBase + score*coinsPerScorePoint) * coinsMult)

	var skills []SkillXP
	if len(cfg.SkillCategories) > 0 {
		// every category gets the same flat share, it is not split
		per := round(float64(xp) * skillShareOfXP)
		for _, id := range cfg.SkillCategories {
			if id == "" {
				continue
			}
			skills = append(skills, SkillXP{SkillID: id, XP: per})
		}
	}

	return Reward{XP: xp, Coins: coins, SkillXP: skills, Bonuses: bonuses}
}

// ApplyFastDecisionBonus multiplies xp by 1.2 when the decision took less than
// 30 seconds. Skill shares are recomputed from the boosted xp.
func ApplyFastDecisionBonus(r Reward, elapsed time.Duration) Reward {
	if elapsed < 0 || elapsed >= FastDecisionCutoff {
		return r
	}
	return scaleXP(r, FastDecisionXPFactor, BonusFastDecision)
}

// ApplyCoinBoost scales coins by factor, for coin boosts held by the actor.
func ApplyCoinBoost(r Reward, factor float64) Reward {
	if factor <= 0 || factor == 1 {
		return r
	}
	r.Coins = round(float64(r.Coins) * factor)
	r.Bonuses = append(append([]Bonus(nil), r.Bonuses...), Bonus{Kind: BonusBoost, Multiplier: factor, AppliesTo: "coins"})
	return r
}

func scaleXP(r Reward, factor float64, kind string) Reward {
	out := Reward{
		XP:      round(float64(r.XP) * factor),
		Coins:   r.Coins,
		Bonuses: append(append([]Bonus(nil), r.Bonuses...), Bonus{Kind: kind, Multiplier: factor, AppliesTo: "xp"}),
	}
	if len(r.SkillXP) > 0 {
		per := round(float64(out.XP) * skillShareOfXP)
		out.SkillXP = make([]SkillXP, len(r.SkillXP))
		for i, s := range r.SkillXP {
			out.SkillXP[i] = SkillXP{SkillID: s.SkillID, XP: per}
		}
	}
	return out
}

// SkillMap flattens the per-skill list for the ledger.
func (r Reward) SkillMap() map[string]int64 {
	if len(r.SkillXP) == 0 {
		return nil
	}
	out := make(map[string]int64, len(r.SkillXP))
	for _, s := range r.SkillXP {
		out[s.SkillID] += s.XP
	}
	return out
}

func positiveOr(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func round(v float64) int64 {
	if v < 0 {
		return 0
	}
	return int64(math.Round(v))
}
