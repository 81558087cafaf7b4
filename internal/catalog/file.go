package catalog

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/engine/criteria"
)

//go:embed default_catalog.yaml
var defaultCatalogFS embed.FS

type yamlCatalog struct {
	Levels        []int64           `yaml:"levels"`
	StreakRewards []yamlStreakDay   `yaml:"streak_rewards"`
	Games         []yamlGame        `yaml:"games"`
	Skills        []yamlSkill       `yaml:"skills"`
	Badges        []yamlBadge       `yaml:"badges"`
	Missions      []yamlMission     `yaml:"missions"`
	Items         []yamlItem        `yaml:"items"`
	Meta          map[string]string `yaml:"meta"`
}

type yamlStreakDay struct {
	Day   int   `yaml:"day"`
	XP    int64 `yaml:"xp"`
	Coins int64 `yaml:"coins"`
}

type yamlGame struct {
	GameType              string             `yaml:"game_type"`
	Name                  string             `yaml:"name"`
	XPBaseReward          float64            `yaml:"xp_base_reward"`
	XPMultiplier          *float64           `yaml:"xp_multiplier"`
	CoinsBaseReward       float64            `yaml:"coins_base_reward"`
	CoinsMultiplier       *float64           `yaml:"coins_multiplier"`
	DifficultyMultipliers map[string]float64 `yaml:"difficulty_multipliers"`
	StreakBonus           struct {
		Enabled     bool    `yaml:"enabled"`
		BonusPerDay float64 `yaml:"bonus_per_day"`
		MaxBonus    float64 `yaml:"max_bonus"`
	} `yaml:"streak_bonus"`
	SkillCategories []string `yaml:"skill_categories"`
	Active          *bool    `yaml:"active"`
}

type yamlSkill struct {
	ID         string               `yaml:"id"`
	Name       string               `yaml:"name"`
	Category   string               `yaml:"category"`
	Parent     string               `yaml:"parent"`
	XPPerLevel int64                `yaml:"xp_per_level"`
	MaxLevel   int                  `yaml:"max_level"`
	Criteria   []criteria.Criterion `yaml:"criteria"`
}

type yamlReward struct {
	XP     int64  `yaml:"xp"`
	Coins  int64  `yaml:"coins"`
	Title  string `yaml:"title"`
	ItemID string `yaml:"item_id"`
}

type yamlBadge struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Kind        string               `yaml:"kind"`
	Criteria    []criteria.Criterion `yaml:"criteria"`
	Reward      yamlReward           `yaml:"reward"`
	Active      *bool                `yaml:"active"`
}

type yamlMission struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Period      string     `yaml:"period"`
	Metric      string     `yaml:"metric"`
	EventType   string     `yaml:"event_type"`
	GameType    string     `yaml:"game_type"`
	Target      int64      `yaml:"target"`
	Reward      yamlReward `yaml:"reward"`
	Active      *bool      `yaml:"active"`
}

type yamlItem struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	Category         string `yaml:"category"`
	Price            int64  `yaml:"price"`
	Stock            *int64 `yaml:"stock"`
	Stackable        bool   `yaml:"stackable"`
	RequiresApproval bool   `yaml:"requires_approval"`
	Equippable       bool   `yaml:"equippable"`
	Boost            struct {
		Type            string  `yaml:"type"`
		Value           float64 `yaml:"value"`
		DurationMinutes int     `yaml:"duration_minutes"`
	} `yaml:"boost"`
	ExpiresAfterDays int   `yaml:"expires_after_days"`
	Active           *bool `yaml:"active"`
}

// ReadFile returns the catalog at path, or the embedded default when path
// is empty.
func ReadFile(path string) ([]byte, error) {
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return defaultCatalogFS.ReadFile("default_catalog.yaml")
}

// Load reads, parses and validates a catalog file.
func Load(path string) (*types.CatalogBundle, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML into persisted models and validates the result.
func Parse(data []byte) (*types.CatalogBundle, error) {
	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	b := raw.toBundle()
	if err := Validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *yamlCatalog) toBundle() *types.CatalogBundle {
	b := &types.CatalogBundle{}

	for i, xp := range c.Levels {
		b.Levels = append(b.Levels, &types.LevelThreshold{Level: i + 1, XPRequired: xp})
	}
	for _, d := range c.StreakRewards {
		b.StreakRewards = append(b.StreakRewards, &types.StreakReward{Day: d.Day, XP: d.XP, Coins: d.Coins})
	}
	sort.Slice(b.StreakRewards, func(i, j int) bool { return b.StreakRewards[i].Day < b.StreakRewards[j].Day })

	for _, g := range c.Games {
		diff := g.DifficultyMultipliers
		if diff == nil {
			diff = map[string]float64{}
		}
		b.Games = append(b.Games, &types.GameConfig{
			GameType:              strings.TrimSpace(g.GameType),
			Name:                  g.Name,
			XPBaseReward:          g.XPBaseReward,
			XPMultiplier:          floatOr(g.XPMultiplier, 1),
			CoinsBaseReward:       g.CoinsBaseReward,
			CoinsMultiplier:       floatOr(g.CoinsMultiplier, 1),
			DifficultyMultipliers: datatypes.NewJSONType(diff),
			StreakBonusEnabled:    g.StreakBonus.Enabled,
			StreakBonusPerDay:     g.StreakBonus.BonusPerDay,
			StreakBonusMax:        g.StreakBonus.MaxBonus,
			SkillCategories:       datatypes.JSONSlice[string](nonNilStrings(g.SkillCategories)),
			IsActive:              boolOr(g.Active, true),
		})
	}

	for i, s := range c.Skills {
		var parent *string
		if p := strings.TrimSpace(s.Parent); p != "" {
			parent = &p
		}
		per := s.XPPerLevel
		if per == 0 {
			per = 100
		}
		b.Skills = append(b.Skills, &types.Skill{
			ID:            strings.TrimSpace(s.ID),
			Name:          s.Name,
			Category:      s.Category,
			ParentSkillID: parent,
			XPPerLevel:    per,
			MaxLevel:      s.MaxLevel,
			Criteria:      datatypes.JSONSlice[criteria.Criterion](nonNilCriteria(s.Criteria)),
			SortOrder:     i,
		})
	}

	for _, bd := range c.Badges {
		kind := types.BadgeKind(strings.TrimSpace(bd.Kind))
		if kind == "" {
			kind = types.KindBadge
		}
		b.Badges = append(b.Badges, &types.Badge{
			ID:           strings.TrimSpace(bd.ID),
			Name:         bd.Name,
			Description:  bd.Description,
			Kind:         kind,
			Criteria:     datatypes.JSONSlice[criteria.Criterion](nonNilCriteria(bd.Criteria)),
			RewardXP:     bd.Reward.XP,
			RewardCoins:  bd.Reward.Coins,
			RewardTitle:  strings.TrimSpace(bd.Reward.Title),
			RewardItemID: strings.TrimSpace(bd.Reward.ItemID),
			IsActive:     boolOr(bd.Active, true),
		})
	}

	for _, m := range c.Missions {
		b.Missions = append(b.Missions, &types.MissionTemplate{
			ID:          strings.TrimSpace(m.ID),
			Title:       m.Title,
			Description: m.Description,
			Period:      strings.TrimSpace(m.Period),
			Metric:      strings.TrimSpace(m.Metric),
			EventType:   strings.TrimSpace(m.EventType),
			GameType:    strings.TrimSpace(m.GameType),
			TargetValue: m.Target,
			RewardXP:    m.Reward.XP,
			RewardCoins: m.Reward.Coins,
			IsActive:    boolOr(m.Active, true),
		})
	}

	for _, it := range c.Items {
		b.Items = append(b.Items, &types.MarketplaceItem{
			ID:                   strings.TrimSpace(it.ID),
			Name:                 it.Name,
			Description:          it.Description,
			Category:             strings.TrimSpace(it.Category),
			Price:                it.Price,
			Stock:                it.Stock,
			Stackable:            it.Stackable,
			RequiresApproval:     it.RequiresApproval,
			Equippable:           it.Equippable,
			BoostType:            strings.TrimSpace(it.Boost.Type),
			BoostValue:           it.Boost.Value,
			BoostDurationMinutes: it.Boost.DurationMinutes,
			ExpiresAfterDays:     it.ExpiresAfterDays,
			IsActive:             boolOr(it.Active, true),
		})
	}
	return b
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilCriteria(in []criteria.Criterion) []criteria.Criterion {
	if in == nil {
		return []criteria.Criterion{}
	}
	return in
}
