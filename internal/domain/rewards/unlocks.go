package rewards

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BadgeUnlock is unique per (user_id, badge_id); insert-ignore on that pair
// decides the winner between concurrent evaluations.
type BadgeUnlock struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_badge_unlock_user_badge,priority:1" json:"user_id"`
	BadgeID        string    `gorm:"not null;uniqueIndex:idx_badge_unlock_user_badge,priority:2" json:"badge_id"`
	Kind           string    `gorm:"not null;default:'badge'" json:"kind"`
	CertificateURL string    `gorm:"not null;default:''" json:"certificate_url,omitempty"`
	UnlockedAt     time.Time `gorm:"not null;autoCreateTime" json:"unlocked_at"`
}

func (BadgeUnlock) TableName() string { return "badge_unlock" }

func (b *BadgeUnlock) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

type UserTitle struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_title,priority:1" json:"user_id"`
	Title         string    `gorm:"not null;uniqueIndex:idx_user_title,priority:2" json:"title"`
	SourceBadgeID string    `gorm:"not null;default:''" json:"source_badge_id,omitempty"`
	GrantedAt     time.Time `gorm:"not null;autoCreateTime" json:"granted_at"`
}

func (UserTitle) TableName() string { return "user_title" }

func (u *UserTitle) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
