// Package solver owns the hyperparameter state of a training session and the
// rule that decides how to adjust it between attempts.
package solver

import "fmt"

// Mode is the trainer execution mode
type Mode string

const (
	// ModeCPU runs the trainer on the CPU
	ModeCPU Mode = "CPU"

	// ModeGPU runs the trainer on a GPU
	ModeGPU Mode = "GPU"
)

// Config is the hyperparameter record serialized to the solver description
// before every attempt. Field tags match the solver description keys.
type Config struct {
	Net                string  `yaml:"net" json:"net"`
	TestIter           int     `yaml:"test_iter" json:"test_iter"`
	TestInterval       int     `yaml:"test_interval" json:"test_interval"`
	TestInitialization bool    `yaml:"test_initialization" json:"test_initialization"`
	Display            int     `yaml:"display" json:"display"`
	AverageLoss        int     `yaml:"average_loss" json:"average_loss"`
	BaseLR             float64 `yaml:"base_lr" json:"base_lr"`
	LRPolicy           string  `yaml:"lr_policy" json:"lr_policy"`
	StepSize           int     `yaml:"stepsize" json:"stepsize"`
	Gamma              float64 `yaml:"gamma" json:"gamma"`
	MaxIter            int     `yaml:"max_iter" json:"max_iter"`
	Momentum           float64 `yaml:"momentum" json:"momentum"`
	WeightDecay        float64 `yaml:"weight_decay" json:"weight_decay"`
	Snapshot           int     `yaml:"snapshot" json:"snapshot"`
	SnapshotPrefix     string  `yaml:"snapshot_prefix" json:"snapshot_prefix"`
	SolverMode         Mode    `yaml:"solver_mode" json:"solver_mode"`
}

// DefaultConfig returns the stock GoogLeNet solver settings
func DefaultConfig() Config {
	return Config{
		Net:                "model/train_val.prototxt",
		TestIter:           1000,
		TestInterval:       4000,
		TestInitialization: false,
		Display:            100,
		AverageLoss:        40,
		BaseLR:             0.01,
		LRPolicy:           "step",
		StepSize:           320000,
		Gamma:              0.96,
		MaxIter:            100,
		Momentum:           0.9,
		WeightDecay:        0.0002,
		Snapshot:           200,
		SnapshotPrefix:     "snapshot/bvlc_googlenet",
		SolverMode:         ModeGPU,
	}
}

// SnapshotFile returns the weights file the trainer writes when it reaches
// MaxIter, relative to the project directory.
func (c Config) SnapshotFile() string {
	return fmt.Sprintf("%s_iter_%d.caffemodel", c.SnapshotPrefix, c.MaxIter)
}

// Validate checks that the config can drive a training attempt
func (c Config) Validate() error {
	if c.Net == "" {
		return fmt.Errorf("net is required")
	}
	if c.SnapshotPrefix == "" {
		return fmt.Errorf("snapshot_prefix is required")
	}
	if c.BaseLR <= 0 {
		return fmt.Errorf("base_lr must be positive, got %g", c.BaseLR)
	}
	if c.MaxIter <= 0 {
		return fmt.Errorf("max_iter must be positive, got %d", c.MaxIter)
	}
	if c.SolverMode != ModeCPU && c.SolverMode != ModeGPU {
		return fmt.Errorf("solver_mode must be %s or %s, got %q", ModeCPU, ModeGPU, c.SolverMode)
	}
	return nil
}
