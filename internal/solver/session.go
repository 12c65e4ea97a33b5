package solver

import (
	"fmt"
	"os"

	"github.com/labelhub/autotrain/internal/workspace"
)

// State is the phase of a tuning session
type State string

const (
	StateInit      State = "Init"
	StateRunning   State = "Running"
	StateEvaluated State = "Evaluated"
	StateAdjusted  State = "Adjusted"
	StateStopped   State = "Stopped"
)

// Session holds the live config and loss history of one project's training
// session and keeps the on-disk solver description in step with the config.
// A Session is not safe for concurrent use.
type Session struct {
	path     string
	defaults Config
	caps     Caps

	config  Config
	history []Attempt
	state   State
}

// NewSession creates a session writing its solver description to path
func NewSession(path string, defaults Config, caps Caps) *Session {
	return &Session{
		path:     path,
		defaults: defaults,
		caps:     caps,
		config:   defaults,
		state:    StateInit,
	}
}

// Reset restores the default config, clears the history and writes the description
func (s *Session) Reset() error {
	s.config = s.defaults
	s.history = nil
	s.state = StateInit
	return WriteDescription(s.path, s.config)
}

// Config returns the live config
func (s *Session) Config() Config {
	return s.config
}

// State returns the current phase
func (s *Session) State() State {
	return s.state
}

// Caps returns the tuning caps
func (s *Session) Caps() Caps {
	return s.caps
}

// History returns a copy of the attempts recorded so far
func (s *Session) History() []Attempt {
	out := make([]Attempt, len(s.history))
	copy(out, s.history)
	return out
}

// DescriptionPath returns the solver description file the trainer reads
func (s *Session) DescriptionPath() string {
	return s.path
}

// BeginAttempt serializes the live config and moves to Running
func (s *Session) BeginAttempt() (Config, error) {
	if s.state == StateStopped {
		return Config{}, fmt.Errorf("session is stopped")
	}
	if err := WriteDescription(s.path, s.config); err != nil {
		return Config{}, err
	}
	s.state = StateRunning
	return s.config, nil
}

// Record appends the loss observed for the running attempt
func (s *Session) Record(loss float64) Attempt {
	attempt := Attempt{Config: s.config, Loss: loss}
	s.history = append(s.history, attempt)
	s.state = StateEvaluated
	return attempt
}

// Adjust applies the next adjustment rule. When no rule applies the session
// moves to Stopped and the config is left unchanged.
func (s *Session) Adjust() (Decision, error) {
	decision := Adjust(s.history, s.config, s.caps)
	if decision.Stopped() {
		s.state = StateStopped
		return decision, nil
	}

	s.config = decision.Next
	if err := WriteDescription(s.path, s.config); err != nil {
		return decision, err
	}
	s.state = StateAdjusted
	return decision, nil
}

// Stop ends the session without adjusting
func (s *Session) Stop() {
	s.state = StateStopped
}

// WriteDescription atomically writes cfg to path in the solver description format
func WriteDescription(path string, cfg Config) error {
	return workspace.WriteFile(path, MarshalDescription(cfg))
}

// ReadDescription reads and parses the solver description at path
func ReadDescription(path string) (Config, error) {
	// #nosec G304 -- path is the project's own solver description
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read solver description: %w", err)
	}
	return UnmarshalDescription(data)
}
