package cycle

import (
	"time"

	"github.com/labelhub/autotrain/internal/status"
	"github.com/labelhub/autotrain/internal/upstream"
)

// Outcome is what a cycle did for one project
type Outcome string

const (
	// OutcomeIdle means the project had no unconsumed images
	OutcomeIdle Outcome = "Idle"

	// OutcomePublished means a new model was uploaded and the images acknowledged
	OutcomePublished Outcome = "Published"

	// OutcomeRolledBack means tuning was exhausted and the previous model kept
	OutcomeRolledBack Outcome = "RolledBack"

	// OutcomeFailed means the project's cycle aborted on an error
	OutcomeFailed Outcome = "Failed"
)

// Phase maps the outcome to the persisted status phase.
func (o Outcome) Phase() status.Phase {
	return status.Phase(o)
}

// ProjectResult is one project's entry in a cycle report.
type ProjectResult struct {
	Project   string      `json:"project"`
	ProjectID upstream.ID `json:"projectId,omitempty"`
	Outcome   Outcome     `json:"outcome"`
	// Reason is the failure message or the solver's stop reason
	Reason      string        `json:"reason,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	FinalLoss   *float64      `json:"finalLoss,omitempty"`
	PendingAcks []upstream.ID `json:"pendingAcks,omitempty"`

	Err error `json:"-"`
}

// Report summarizes one cycle.
type Report struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Results    []ProjectResult `json:"results"`
	// Error is set when the cycle itself could not run to the end
	Error string `json:"error,omitempty"`
}

// Count returns how many projects ended with outcome o.
func (r *Report) Count(o Outcome) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failed reports whether any project failed.
func (r *Report) Failed() bool {
	return r.Count(OutcomeFailed) > 0
}

// Duration is the wall-clock length of the cycle.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
