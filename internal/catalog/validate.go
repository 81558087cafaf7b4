package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/engine/criteria"
	"github.com/yungbote/progression-backend/internal/engine/levels"
	"github.com/yungbote/progression-backend/internal/engine/streak"
)

// Validate checks a bundle and reports every problem found at once.
func Validate(b *types.CatalogBundle) error {
	if b == nil {
		return errors.New("catalog: nil bundle")
	}
	var errs []error

	if _, err := levels.NewTable(levelThresholds(b.Levels)); err != nil {
		errs = append(errs, fmt.Errorf("levels: %w", err))
	}
	if err := streak.ValidateTable(streakTable(b.StreakRewards)); err != nil {
		errs = append(errs, fmt.Errorf("streak_rewards: %w", err))
	}

	seenGame := map[string]bool{}
	for _, g := range b.Games {
		if g.GameType == "" {
			errs = append(errs, errors.New("game: game_type is required"))
			continue
		}
		if seenGame[g.GameType] {
			errs = append(errs, fmt.Errorf("game %s: duplicate game_type", g.GameType))
		}
		seenGame[g.GameType] = true
		if g.XPMultiplier < 0 || g.CoinsMultiplier < 0 || g.XPBaseReward < 0 || g.CoinsBaseReward < 0 {
			errs = append(errs, fmt.Errorf("game %s: rewards and multipliers must be non-negative", g.GameType))
		}
		for k, v := range g.DifficultyMultipliers.Data() {
			if v <= 0 {
				errs = append(errs, fmt.Errorf("game %s: difficulty %q must be positive", g.GameType, k))
			}
		}
		if g.StreakBonusPerDay < 0 || g.StreakBonusMax < 0 {
			errs = append(errs, fmt.Errorf("game %s: streak bonus must be non-negative", g.GameType))
		}
	}

	if _, err := SkillOrder(b.Skills); err != nil {
		errs = append(errs, err)
	}
	for _, s := range b.Skills {
		if s.XPPerLevel <= 0 {
			errs = append(errs, fmt.Errorf("skill %s: xp_per_level must be positive", s.ID))
		}
		if s.MaxLevel < 0 {
			errs = append(errs, fmt.Errorf("skill %s: max_level must be non-negative", s.ID))
		}
		if err := criteria.Validate(s.Criteria); err != nil {
			errs = append(errs, fmt.Errorf("skill %s: %w", s.ID, err))
		}
	}

	items := map[string]bool{}
	for _, it := range b.Items {
		if it.ID == "" {
			errs = append(errs, errors.New("item: id is required"))
			continue
		}
		if items[it.ID] {
			errs = append(errs, fmt.Errorf("item %s: duplicate id", it.ID))
		}
		items[it.ID] = true
		if strings.TrimSpace(it.Name) == "" || it.Category == "" {
			errs = append(errs, fmt.Errorf("item %s: name and category are required", it.ID))
		}
		if it.Price < 0 {
			errs = append(errs, fmt.Errorf("item %s: price must be non-negative", it.ID))
		}
		if it.Stock != nil && *it.Stock < 0 {
			errs = append(errs, fmt.Errorf("item %s: stock must be non-negative", it.ID))
		}
		if it.BoostType != "" {
			if !it.IsBoost() {
				errs = append(errs, fmt.Errorf("item %s: unknown boost type %q", it.ID, it.BoostType))
			}
			if it.BoostValue <= 0 {
				errs = append(errs, fmt.Errorf("item %s: boost value must be positive", it.ID))
			}
		}
	}

	seenBadge := map[string]bool{}
	for _, bd := range b.Badges {
		if bd.ID == "" {
			errs = append(errs, errors.New("badge: id is required"))
			continue
		}
		if seenBadge[bd.ID] {
			errs = append(errs, fmt.Errorf("badge %s: duplicate id", bd.ID))
		}
		seenBadge[bd.ID] = true
		if !bd.Kind.Valid() {
			errs = append(errs, fmt.Errorf("badge %s: unknown kind %q", bd.ID, bd.Kind))
		}
		if bd.RewardXP < 0 || bd.RewardCoins < 0 {
			errs = append(errs, fmt.Errorf("badge %s: reward must be non-negative", bd.ID))
		}
		if bd.RewardItemID != "" && !items[bd.RewardItemID] {
			errs = append(errs, fmt.Errorf("badge %s: reward item %s does not exist", bd.ID, bd.RewardItemID))
		}
		if err := criteria.Validate(bd.Criteria); err != nil {
			errs = append(errs, fmt.Errorf("badge %s: %w", bd.ID, err))
		}
	}

	seenMission := map[string]bool{}
	for _, m := range b.Missions {
		if m.ID == "" {
			errs = append(errs, errors.New("mission: id is required"))
			continue
		}
		if seenMission[m.ID] {
			errs = append(errs, fmt.Errorf("mission %s: duplicate id", m.ID))
		}
		seenMission[m.ID] = true
		if m.Period != types.PeriodDaily && m.Period != types.PeriodMonthly {
			errs = append(errs, fmt.Errorf("mission %s: period must be daily or monthly", m.ID))
		}
		switch m.Metric {
		case types.MetricEventCount, types.MetricXPEarned, types.MetricCoinsEarned:
		default:
			errs = append(errs, fmt.Errorf("mission %s: unknown metric %q", m.ID, m.Metric))
		}
		if m.EventType != "" && !types.EventType(m.EventType).Valid() {
			errs = append(errs, fmt.Errorf("mission %s: unknown event_type %q", m.ID, m.EventType))
		}
		if m.TargetValue <= 0 {
			errs = append(errs, fmt.Errorf("mission %s: target must be positive", m.ID))
		}
	}

	return errors.Join(errs...)
}

// SkillOrder returns skill ids parents-first. Skills must form a forest:
// every parent exists and no chain loops back on itself.
func SkillOrder(skills []*types.Skill) ([]string, error) {
	ids := make(map[string]bool, len(skills))
	for _, s := range skills {
		if s.ID == "" {
			return nil, errors.New("skill: id is required")
		}
		if ids[s.ID] {
			return nil, fmt.Errorf("skill %s: duplicate id", s.ID)
		}
		ids[s.ID] = true
	}

	inDegree := make(map[string]int, len(skills))
	children := map[string][]string{}
	for _, s := range skills {
		p := s.Parent()
		if p == "" {
			continue
		}
		if !ids[p] {
			return nil, fmt.Errorf("skill %s: unknown parent %s", s.ID, p)
		}
		inDegree[s.ID] = 1
		children[p] = append(children[p], s.ID)
	}

	queue := make([]string, 0, len(skills))
	for _, s := range skills {
		if inDegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}

	order := make([]string, 0, len(skills))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, c := range children[id] {
			inDegree[c]--
			if inDegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if len(order) < len(skills) {
		var cycle []string
		for _, s := range skills {
			if inDegree[s.ID] > 0 {
				cycle = append(cycle, s.ID)
			}
		}
		sort.Strings(cycle)
		return nil, fmt.Errorf("skill cycle detected: %s", strings.Join(cycle, ", "))
	}
	return order, nil
}

func levelThresholds(rows []*types.LevelThreshold) []int64 {
	sorted := append([]*types.LevelThreshold(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	out := make([]int64, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, r.XPRequired)
	}
	return out
}

func streakTable(rows []*types.StreakReward) []streak.Reward {
	sorted := append([]*types.StreakReward(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Day < sorted[j].Day })
	out := make([]streak.Reward, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, streak.Reward{Day: r.Day, XP: r.XP, Coins: r.Coins})
	}
	return out
}
