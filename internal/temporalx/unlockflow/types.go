package unlockflow

const (
	WorkflowName     = "unlock_evaluation"
	ActivityEvaluate = "unlock_evaluation_run"
)

// Input is the workflow argument. Kinds empty means every badge kind plus
// skill nodes.
type Input struct {
	ActorID string   `json:"actor_id"`
	Kinds   []string `json:"kinds,omitempty"`
}

type Result struct {
	ActorID string   `json:"actor_id"`
	Badges  []string `json:"badges"`
	Skills  []string `json:"skills"`
	Failed  int      `json:"failed"`
}
