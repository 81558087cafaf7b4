package progression

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventType string

const (
	EventGamePlayed        EventType = "game_played"
	EventQuizCompleted     EventType = "quiz_completed"
	EventDecisionMade      EventType = "decision_made"
	EventSalesSession      EventType = "sales_session"
	EventStreakClaimed     EventType = "streak_claimed"
	EventTrainingCompleted EventType = "training_completed"
	EventFeedbackGiven     EventType = "feedback_given"
	EventBadgeUnlocked     EventType = "badge_unlocked"
	EventMissionCompleted  EventType = "mission_completed"
	EventItemPurchased     EventType = "item_purchased"
	EventAdminAction       EventType = "admin_action"
)

var eventTypes = map[EventType]struct{}{
	EventGamePlayed:        {},
	EventQuizCompleted:     {},
	EventDecisionMade:      {},
	EventSalesSession:      {},
	EventStreakClaimed:     {},
	EventTrainingCompleted: {},
	EventFeedbackGiven:     {},
	EventBadgeUnlocked:     {},
	EventMissionCompleted:  {},
	EventItemPurchased:     {},
	EventAdminAction:       {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Gameplay reports whether the event counts as a play for streaks and the
// games-played counter.
func (t EventType) Gameplay() bool {
	switch t {
	case EventGamePlayed, EventQuizCompleted, EventDecisionMade, EventSalesSession, EventTrainingCompleted:
		return true
	}
	return false
}

// Reserved reports whether only the engine may write the event type.
func (t EventType) Reserved() bool {
	switch t {
	case EventStreakClaimed, EventBadgeUnlocked, EventMissionCompleted, EventItemPurchased, EventAdminAction:
		return true
	}
	return false
}

// ClientLogged reports whether a client may log the event type directly.
// Gameplay goes through the completion flow so its reward is computed
// server-side.
func (t EventType) ClientLogged() bool {
	return t.Valid() && !t.Reserved() && !t.Gameplay()
}

// ActivityEvent is an append-only fact. Credited marks events the engine
// wrote itself; only those feed missions and unlock criteria.
type ActivityEvent struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_activity_event_client,priority:1;index:idx_activity_event_user_type,priority:1" json:"user_id"`
	EventType     EventType      `gorm:"not null;index:idx_activity_event_user_type,priority:2" json:"event_type"`
	GameType      string         `gorm:"column:game_type;index" json:"game_type,omitempty"`
	ClientEventID string         `gorm:"not null;uniqueIndex:idx_activity_event_client,priority:2" json:"client_event_id"`
	XPEarned      int64          `gorm:"not null;default:0" json:"xp_earned"`
	CoinsEarned   int64          `gorm:"not null;default:0" json:"coins_earned"`
	Score         float64        `gorm:"not null;default:0" json:"score"`
	Metadata      datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	Credited      bool           `gorm:"not null;default:false" json:"credited"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (ActivityEvent) TableName() string { return "activity_event" }

func (e *ActivityEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
