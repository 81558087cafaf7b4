package unlockflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"

	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/services"
)

// Dispatcher starts an unlock_evaluation workflow per call and returns
// without waiting, so callers get a nil set. When the workflow cannot be
// started it evaluates through fallback instead.
type Dispatcher struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
	fallback  services.UnlockDispatcher
}

var _ services.UnlockDispatcher = (*Dispatcher)(nil)

func NewDispatcher(baseLog *logger.Logger, tc temporalsdkclient.Client, taskQueue string, fallback services.UnlockDispatcher) *Dispatcher {
	return &Dispatcher{
		log:       baseLog.With("service", "UnlockDispatcher", "mode", services.UnlockModeTemporal),
		tc:        tc,
		taskQueue: taskQueue,
		fallback:  fallback,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, actorID uuid.UUID, kinds ...types.BadgeKind) (*services.UnlockedSet, error) {
	in := Input{ActorID: actorID.String()}
	for _, k := range kinds {
		in.Kinds = append(in.Kinds, string(k))
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("%s:%s:%s", WorkflowName, actorID, uuid.NewString()),
		TaskQueue: d.taskQueue,
	}
	run, err := d.tc.ExecuteWorkflow(ctx, opts, WorkflowName, in)
	if err == nil {
		d.log.Debug("unlock evaluation started", "actor_id", actorID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
		return nil, nil
	}
	if d.fallback == nil {
		return nil, err
	}
	d.log.Warn("starting unlock workflow failed; evaluating inline", "actor_id", actorID, "error", err)
	return d.fallback.Dispatch(ctx, actorID, kinds...)
}
