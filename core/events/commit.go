package events

import "github.com/kilianp07/crewsched/core/model"

// CommitPhase is the stage a commit reached.
type CommitPhase string

const (
	PhaseApplied    CommitPhase = "optimistically_applied"
	PhaseReconciled CommitPhase = "reconciled"
	PhaseRolledBack CommitPhase = "rolled_back"
)

// CommitEvent is emitted as a commit moves through its phases. Previous is
// the pre-commit value for updates and deletes, nil for creates.
type CommitEvent struct {
	Op         string
	Phase      CommitPhase
	Assignment model.Assignment
	Previous   *model.Assignment
	Placement  model.PlacementResult
	Reason     *model.Reason
}
