package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/catalog"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/engine/reward"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
)

// RewardRequest describes a hypothetical completion. A nil StreakDays uses
// the actor's current streak.
type RewardRequest struct {
	EventType       string  `json:"event_type"`
	GameType        string  `json:"game_type"`
	Score           float64 `json:"score"`
	Difficulty      string  `json:"difficulty,omitempty"`
	StreakDays      *int    `json:"streak_days,omitempty"`
	BonusMultiplier float64 `json:"bonus_multiplier,omitempty"`
	ElapsedMs       int64   `json:"elapsed_ms,omitempty"`
}

type RewardPreview struct {
	reward.Reward
	GameType   string `json:"game_type"`
	Configured bool   `json:"configured"`
	StreakDays int    `json:"streak_days"`
}

// RewardService previews rewards without applying them.
type RewardService interface {
	Compute(ctx context.Context, actorID uuid.UUID, req RewardRequest) (*RewardPreview, error)
}

type rewardService struct {
	catalog *catalog.Registry
	streaks StreakService
}

func NewRewardService(reg *catalog.Registry, streaks StreakService) RewardService {
	return &rewardService{catalog: reg, streaks: streaks}
}

func (s *rewardService) Compute(ctx context.Context, actorID uuid.UUID, req RewardRequest) (*RewardPreview, error) {
	const op = "rewards.preview"
	if req.Score < 0 || req.BonusMultiplier < 0 {
		return nil, apierr.Validation(op, "score and bonus must be non-negative")
	}
	et := types.EventType(strings.TrimSpace(req.EventType))
	if et == "" {
		et = types.EventGamePlayed
	}
	if !et.Valid() {
		return nil, apierr.New(apierr.KindValidation, apierr.CodeUnknownEventType, op, "unknown event type "+string(et))
	}

	days := 0
	switch {
	case req.StreakDays != nil:
		if *req.StreakDays < 0 {
			return nil, apierr.Validation(op, "streak days must be non-negative")
		}
		days = *req.StreakDays
	case s.streaks != nil && actorID != uuid.Nil:
		v, err := s.streaks.Get(ctx, actorID)
		if err != nil {
			return nil, err
		}
		days = v.CurrentStreak
	}

	cfg := s.catalog.Snapshot().Game(strings.TrimSpace(req.GameType))
	r := reward.Compute(cfg.Policy(), reward.Input{
		EventType:       string(et),
		GameType:        req.GameType,
		Score:           req.Score,
		Difficulty:      req.Difficulty,
		StreakDays:      days,
		BonusMultiplier: req.BonusMultiplier,
	})
	if et == types.EventDecisionMade && req.ElapsedMs > 0 {
		r = reward.ApplyFastDecisionBonus(r, time.Duration(req.ElapsedMs)*time.Millisecond)
	}
	return &RewardPreview{Reward: r, GameType: req.GameType, Configured: cfg != nil, StreakDays: days}, nil
}
