// Package trainer drives the external trainer and evaluator.
package trainer

import (
	"context"
	"math"
	"regexp"
	"strconv"

	"github.com/labelhub/autotrain/internal/solver"
)

//go:generate mockgen -destination=mocks/mock_adapter.go -package=mocks -source=adapter.go Adapter

// Result is the structured outcome of one trainer or evaluator run.
type Result struct {
	ExitCode int
	// FinalLoss is the last loss the evaluator reported, nil if none parsed.
	FinalLoss *float64
}

// Succeeded reports a zero exit.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// LossOrSentinel returns FinalLoss, or solver.SentinelLoss when there is none.
func (r Result) LossOrSentinel() float64 {
	if r.FinalLoss == nil {
		return solver.SentinelLoss
	}
	return *r.FinalLoss
}

// TrainRequest is one training run over a solver description.
type TrainRequest struct {
	// Dir is the project directory; the solver's relative paths resolve against it.
	Dir        string
	SolverPath string
}

// EvalRequest is one evaluation of trained weights.
type EvalRequest struct {
	Dir           string
	NetDefinition string
	Weights       string
	Mode          solver.Mode
}

// Adapter runs the trainer and evaluator. A non-zero exit is reported in
// Result; an error means the tool could not be run to completion.
type Adapter interface {
	Train(ctx context.Context, req TrainRequest) (Result, error)
	Evaluate(ctx context.Context, req EvalRequest) (Result, error)
}

var lossPattern = regexp.MustCompile(`Loss: (\S+)`)

// LossParser extracts the evaluator's loss from its diagnostic lines.
// The last parsable `Loss: <float>` line wins. Non-finite values are ignored.
type LossParser struct {
	loss  float64
	found bool
}

// Feed inspects one line.
func (p *LossParser) Feed(line string) {
	m := lossPattern.FindStringSubmatch(line)
	if m == nil {
		return
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	p.loss = v
	p.found = true
}

// Loss returns the parsed loss or nil.
func (p *LossParser) Loss() *float64 {
	if !p.found {
		return nil
	}
	v := p.loss
	return &v
}

// ParseLoss applies LossParser to a full set of lines.
func ParseLoss(lines []string) *float64 {
	var p LossParser
	for _, l := range lines {
		p.Feed(l)
	}
	return p.Loss()
}
