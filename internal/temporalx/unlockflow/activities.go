package unlockflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/services"
)

type Activities struct {
	Log      *logger.Logger
	Unlocks  services.UnlockService
	Notifier services.Notifier
}

// Evaluate runs the evaluator and pushes what it granted to the actor's
// sessions. Validation and not-found failures are not retried.
func (a *Activities) Evaluate(ctx context.Context, in Input) (Result, error) {
	res := Result{ActorID: strings.TrimSpace(in.ActorID), Badges: []string{}, Skills: []string{}}
	if a == nil || a.Unlocks == nil {
		return res, fmt.Errorf("unlockflow: activity not configured")
	}
	actorID, err := uuid.Parse(res.ActorID)
	if err != nil || actorID == uuid.Nil {
		return res, temporal.NewNonRetryableApplicationError("invalid actor_id", apierr.CodeInvalidArgument, err)
	}
	kinds := make([]types.BadgeKind, 0, len(in.Kinds))
	for _, k := range in.Kinds {
		kind := types.BadgeKind(strings.TrimSpace(k))
		if !kind.Valid() {
			return res, temporal.NewNonRetryableApplicationError("unknown badge kind "+k, apierr.CodeInvalidArgument, nil)
		}
		kinds = append(kinds, kind)
	}

	set, err := a.Unlocks.Evaluate(ctx, actorID, kinds...)
	if err != nil {
		switch apierr.KindOf(err) {
		case apierr.KindValidation, apierr.KindNotFound:
			return res, temporal.NewNonRetryableApplicationError(err.Error(), apierr.CodeOf(err), err)
		}
		return res, err
	}

	for _, b := range set.Badges {
		res.Badges = append(res.Badges, b.BadgeID)
	}
	res.Skills = append(res.Skills, set.Skills...)
	res.Failed = len(set.Failed)

	if a.Notifier != nil && !set.Empty() {
		a.Notifier.BadgesUnlocked(ctx, actorID, set)
		a.Notifier.MissionsCompleted(ctx, actorID, set.Missions)
	}
	if a.Log != nil && (len(res.Badges) > 0 || len(res.Skills) > 0) {
		a.Log.Info("unlocks granted", "actor_id", actorID, "badges", res.Badges, "skills", res.Skills)
	}
	return res, nil
}
