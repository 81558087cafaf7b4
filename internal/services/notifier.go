package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
	"github.com/yungbote/progression-backend/internal/realtime/bus"
)

// Notifier pushes state changes to every open session of an actor. It is
// fire-and-forget and never fails the caller.
type Notifier interface {
	Publish(ctx context.Context, actorID uuid.UUID, event realtime.Event, data any)

	ProgressionUpdated(ctx context.Context, actorID uuid.UUID, res *types.ApplyResult)
	BadgesUnlocked(ctx context.Context, actorID uuid.UUID, set *UnlockedSet)
	MissionsCompleted(ctx context.Context, actorID uuid.UUID, missions []*types.Mission)
}

type notifier struct {
	log *logger.Logger
	hub *realtime.Hub
	bus bus.Bus
}

// NewNotifier publishes through b when it is non-nil (its forwarder feeds
// each instance's hub) and straight to hub otherwise.
func NewNotifier(baseLog *logger.Logger, hub *realtime.Hub, b bus.Bus) Notifier {
	return &notifier{log: baseLog.With("service", "Notifier"), hub: hub, bus: b}
}

func (n *notifier) Publish(ctx context.Context, actorID uuid.UUID, event realtime.Event, data any) {
	if n == nil || actorID == uuid.Nil {
		return
	}
	msg := realtime.Message{Channel: actorID.String(), Event: event, Data: data, At: time.Now().UTC()}
	if n.bus != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		err := n.bus.Publish(ctx, msg)
		if err == nil {
			return
		}
		n.log.Warn("bus publish failed; delivering locally", "error", err, "event", event)
	}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
}

func (n *notifier) ProgressionUpdated(ctx context.Context, actorID uuid.UUID, res *types.ApplyResult) {
	if res == nil || res.Duplicate {
		return
	}
	n.Publish(ctx, actorID, realtime.EventProgressionUpdated, map[string]any{
		"xp":     res.NewXP,
		"level":  res.NewLevel,
		"coins":  res.NewCoins,
		"skills": res.Skills,
	})
	if res.LeveledUp {
		n.Publish(ctx, actorID, realtime.EventLevelUp, map[string]any{
			"previous_level": res.PrevLevel,
			"level":          res.NewLevel,
		})
	}
}

func (n *notifier) BadgesUnlocked(ctx context.Context, actorID uuid.UUID, set *UnlockedSet) {
	if set == nil {
		return
	}
	for _, b := range set.Badges {
		n.Publish(ctx, actorID, realtime.EventBadgeUnlocked, b)
	}
	for _, id := range set.Skills {
		n.Publish(ctx, actorID, realtime.EventSkillUnlocked, map[string]any{"skill_id": id})
	}
	if set.Progression != nil {
		n.ProgressionUpdated(ctx, actorID, set.Progression)
	}
}

func (n *notifier) MissionsCompleted(ctx context.Context, actorID uuid.UUID, missions []*types.Mission) {
	for _, m := range missions {
		n.Publish(ctx, actorID, realtime.EventMissionCompleted, m)
	}
}
