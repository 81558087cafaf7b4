package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

const (
	UnlockModeInline   = "inline"
	UnlockModeTemporal = "temporal"
)

// UnlockDispatcher decides where unlock evaluation runs after a flow
// commits. Inline dispatchers return the set; asynchronous ones return nil
// and publish from the worker.
type UnlockDispatcher interface {
	Dispatch(ctx context.Context, actorID uuid.UUID, kinds ...types.BadgeKind) (*UnlockedSet, error)
}

type inlineUnlockDispatcher struct {
	log      *logger.Logger
	unlocks  UnlockService
	notifier Notifier
}

func NewInlineUnlockDispatcher(baseLog *logger.Logger, unlocks UnlockService, notifier Notifier) UnlockDispatcher {
	return &inlineUnlockDispatcher{
		log:      baseLog.With("service", "UnlockDispatcher", "mode", UnlockModeInline),
		unlocks:  unlocks,
		notifier: notifier,
	}
}

func (d *inlineUnlockDispatcher) Dispatch(ctx context.Context, actorID uuid.UUID, kinds ...types.BadgeKind) (*UnlockedSet, error) {
	set, err := d.unlocks.Evaluate(ctx, actorID, kinds...)
	if err != nil {
		return nil, err
	}
	if d.notifier != nil && !set.Empty() {
		d.notifier.BadgesUnlocked(ctx, actorID, set)
		d.notifier.MissionsCompleted(ctx, actorID, set.Missions)
	}
	return set, nil
}
