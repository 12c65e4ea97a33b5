package solver

// SentinelLoss is recorded when the evaluator produced no parsable loss
const SentinelLoss = -1.0

// divergenceFactor is how many times larger than the previous loss the latest
// loss must be to count as a divergence spike
const divergenceFactor = 10

// Caps bound the tuning budget of a session
type Caps struct {
	// MaxIter is the iteration budget below which iterations keep doubling
	MaxIter int

	// BaseLRFloor is the learning rate above which the rate keeps halving
	BaseLRFloor float64
}

// Attempt is one trainer run and the validation loss observed for it
type Attempt struct {
	Config Config  `json:"config"`
	Loss   float64 `json:"loss"`
}

// Valid reports whether the attempt produced a real loss observation
func (a Attempt) Valid() bool {
	return a.Loss >= 0
}

// Action is the kind of adjustment chosen between attempts
type Action string

const (
	// ActionHalveLearningRate halves base_lr
	ActionHalveLearningRate Action = "halve-learning-rate"

	// ActionDoubleIterations doubles max_iter
	ActionDoubleIterations Action = "double-iterations"

	// ActionStop means no adjustment is left and the session is exhausted
	ActionStop Action = "stop"
)

// Reason constants explain which rule produced a decision
const (
	ReasonDivergence      = "loss-diverged"
	ReasonIterationBudget = "below-iteration-cap"
	ReasonLearningRate    = "above-learning-rate-floor"
	ReasonExhausted       = "tuning-budget-exhausted"
)

// Decision is the outcome of one adjustment round
type Decision struct {
	Action Action
	Reason string
	// Next is the config for the following attempt; equal to the input config when Action is ActionStop
	Next Config
}

// Stopped reports whether the decision ends the session
func (d Decision) Stopped() bool {
	return d.Action == ActionStop
}

// Adjust chooses the next hyperparameters from the loss history. Rules are
// evaluated in order and the first match wins:
//
//  1. more than two attempts and the latest loss exceeds ten times the one
//     before it: halve the learning rate
//  2. max_iter below caps.MaxIter: double max_iter (the result may overshoot the cap)
//  3. base_lr above caps.BaseLRFloor: halve the learning rate
//  4. otherwise stop
func Adjust(history []Attempt, current Config, caps Caps) Decision {
	next := current

	if n := len(history); n > 2 && history[n-1].Loss > divergenceFactor*history[n-2].Loss {
		next.BaseLR /= 2
		return Decision{Action: ActionHalveLearningRate, Reason: ReasonDivergence, Next: next}
	}

	if current.MaxIter < caps.MaxIter {
		next.MaxIter *= 2
		return Decision{Action: ActionDoubleIterations, Reason: ReasonIterationBudget, Next: next}
	}

	if current.BaseLR > caps.BaseLRFloor {
		next.BaseLR /= 2
		return Decision{Action: ActionHalveLearningRate, Reason: ReasonLearningRate, Next: next}
	}

	return Decision{Action: ActionStop, Reason: ReasonExhausted, Next: current}
}
