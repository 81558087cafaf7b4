package unlockflow

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow runs one unlock evaluation. The evaluator grants each badge at
// most once, so activity retries are safe.
func Workflow(ctx workflow.Context, in Input) (Result, error) {
	if strings.TrimSpace(in.ActorID) == "" {
		return Result{}, fmt.Errorf("unlockflow: missing actor_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})

	var out Result
	if err := workflow.ExecuteActivity(ctx, ActivityEvaluate, in).Get(ctx, &out); err != nil {
		workflow.GetLogger(ctx).Warn("unlock evaluation failed", "actor_id", in.ActorID, "error", err)
		return out, err
	}
	return out, nil
}
