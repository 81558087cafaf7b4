package realtime

import "time"

type Event string

const (
	EventProgressionUpdated Event = "ProgressionUpdated"
	EventLevelUp            Event = "LevelUp"
	EventBadgeUnlocked      Event = "BadgeUnlocked"
	EventSkillUnlocked      Event = "SkillUnlocked"
	EventStreakUpdated      Event = "StreakUpdated"
	EventStreakClaimed      Event = "StreakClaimed"
	EventMissionCompleted   Event = "MissionCompleted"
	EventInventoryUpdated   Event = "InventoryUpdated"
	EventActivityRecorded   Event = "ActivityRecorded"
)

// Message is one notification. Channel is the actor id.
type Message struct {
	Channel string    `json:"channel"`
	Event   Event     `json:"event"`
	Data    any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}
