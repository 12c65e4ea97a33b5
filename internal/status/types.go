package status

import "time"

// Phase is the outcome of a project's most recent cycle
type Phase string

const (
	// PhaseIdle means the server had no new images for the project
	PhaseIdle Phase = "Idle"

	// PhasePublished means a model met the loss threshold and was uploaded
	PhasePublished Phase = "Published"

	// PhaseRolledBack means tuning was exhausted and the previous model was kept
	PhaseRolledBack Phase = "RolledBack"

	// PhaseFailed means the cycle aborted with an error for the project
	PhaseFailed Phase = "Failed"
)

// TrainingStatus is the persisted view of a project's training history.
type TrainingStatus struct {
	// Phase is the outcome of the last cycle that touched the project
	Phase Phase `json:"phase"`

	// Message carries the failure reason or a short summary
	Message string `json:"message,omitempty"`

	// LastCycleID identifies the cycle that wrote this status
	LastCycleID string `json:"lastCycleId,omitempty"`

	// LastAttempt is when the project last went through a cycle
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// Attempts is the number of train/evaluate attempts in the last session
	Attempts int `json:"attempts,omitempty"`

	// LastLoss is the final validation loss of the last session
	LastLoss *float64 `json:"lastLoss,omitempty"`

	// LastPublished is when a model was last uploaded
	LastPublished *time.Time `json:"lastPublished,omitempty"`

	// ConsecutiveFailures counts Failed cycles since the last cycle that was not Failed
	ConsecutiveFailures int `json:"consecutiveFailures,omitempty"`
}

// Update describes the result of one cycle for a project.
type Update struct {
	CycleID  string
	Phase    Phase
	Message  string
	Attempts int
	Loss     *float64
	At       time.Time
}

// Next returns the status that follows prev after u. prev may be nil.
// An idle cycle keeps the previous session's figures.
func Next(prev *TrainingStatus, u Update) *TrainingStatus {
	next := TrainingStatus{}
	if prev != nil {
		next = *prev
	}

	at := u.At
	next.Phase = u.Phase
	next.Message = u.Message
	next.LastCycleID = u.CycleID
	next.LastAttempt = &at

	switch u.Phase {
	case PhaseIdle:
		return &next
	case PhaseFailed:
		next.ConsecutiveFailures++
	default:
		next.ConsecutiveFailures = 0
	}

	if u.Phase == PhasePublished {
		next.LastPublished = &at
	}
	if u.Attempts > 0 {
		next.Attempts = u.Attempts
		next.LastLoss = u.Loss
	}
	return &next
}
