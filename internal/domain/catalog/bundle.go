package catalog

// Bundle is a full catalog as persisted: what the seeder writes and what
// the registry reads back.
type Bundle struct {
	Games         []*GameConfig
	Skills        []*Skill
	Badges        []*Badge
	Missions      []*MissionTemplate
	Items         []*MarketplaceItem
	Levels        []*LevelThreshold
	StreakRewards []*StreakReward
}
