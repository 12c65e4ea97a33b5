// Package config provides configuration loading and management for the training service.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/labelhub/autotrain/internal/solver"
	"github.com/labelhub/autotrain/internal/telemetry"
)

// EnvPrefix is the prefix for environment variables read by the service
const EnvPrefix = "AUTOTRAIN"

const (
	// DefaultServerEndpoint is the labeling server used when none is configured
	DefaultServerEndpoint = "http://localhost:8888"

	// DefaultCaffeTool is the Caffe CLI binary
	DefaultCaffeTool = "/opt/caffe/build/tools/caffe"

	// DefaultDailyAt is the local time of the scheduled daily cycle
	DefaultDailyAt = "00:00"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure. One Config describes one deployment.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Training  TrainingConfig    `yaml:"training"`
	Tools     ToolsConfig       `yaml:"tools"`
	Schedule  ScheduleConfig    `yaml:"schedule"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines the labeling server connection
type ServerConfig struct {
	// Endpoint is the base URL of the labeling server, e.g. "http://10.66.91.141:8888"
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds every HTTP request except the model upload
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// UploadTimeout bounds the model upload, which streams the whole weights file
	UploadTimeout time.Duration `yaml:"uploadTimeout,omitempty"`

	// RetryDelay is the pause before the single retry of a failed image download or acknowledgment
	RetryDelay time.Duration `yaml:"retryDelay,omitempty"`
}

// WorkspaceConfig defines where project workspaces live
type WorkspaceConfig struct {
	// Root holds one directory per project, named after the project
	Root string `yaml:"root"`

	// Template is copied into every new project directory
	Template string `yaml:"template"`

	// StateDir holds per-project status files. Defaults to "<root>/.state".
	StateDir string `yaml:"stateDir,omitempty"`
}

// TrainingConfig defines the tuning budget and the starting hyperparameters
type TrainingConfig struct {
	// MaxLoss is the validation loss at or below which an attempt succeeds
	MaxLoss float64 `yaml:"maxLoss"`

	// MaxIter is the iteration cap for the doubling rule
	MaxIter int `yaml:"maxIter"`

	// BaseLRFloor is the learning rate floor for the halving rule
	BaseLRFloor float64 `yaml:"baseLRFloor"`

	// Solver holds the defaults every session starts from
	Solver solver.Config `yaml:"solver"`
}

// ToolsConfig defines the external executables and their limits
type ToolsConfig struct {
	// Caffe is the trainer/evaluator binary
	Caffe string `yaml:"caffe"`

	// Convert is the image-to-dataset conversion tool, called as "<convert> <train.txt> <val.txt> <dest>"
	Convert string `yaml:"convert"`

	// EvalIterations is the number of evaluator batches
	EvalIterations int `yaml:"evalIterations,omitempty"`

	// GPUDevice is the device passed to the evaluator in GPU mode
	GPUDevice int `yaml:"gpuDevice,omitempty"`

	TrainTimeout   time.Duration `yaml:"trainTimeout,omitempty"`
	EvalTimeout    time.Duration `yaml:"evalTimeout,omitempty"`
	ConvertTimeout time.Duration `yaml:"convertTimeout,omitempty"`
}

// ScheduleConfig defines when cycles run
type ScheduleConfig struct {
	// DailyAt is the local wall-clock time ("HH:MM") of the daily cycle
	DailyAt string `yaml:"dailyAt"`

	// RunOnStart triggers one cycle immediately at startup
	RunOnStart *bool `yaml:"runOnStart,omitempty"`
}

// Default returns a configuration with every optional value filled in
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Endpoint:   DefaultServerEndpoint,
			Timeout:       30 * time.Second,
			UploadTimeout: 30 * time.Minute,
			RetryDelay:    time.Second,
		},
		Training: TrainingConfig{
			MaxLoss:     0.2,
			MaxIter:     2000,
			BaseLRFloor: 0.001,
			Solver:      solver.DefaultConfig(),
		},
		Tools: ToolsConfig{
			Caffe:          DefaultCaffeTool,
			EvalIterations: 50,
			TrainTimeout:   12 * time.Hour,
			EvalTimeout:    time.Hour,
			ConvertTimeout: time.Hour,
		},
		Schedule: ScheduleConfig{
			DailyAt:    DefaultDailyAt,
			RunOnStart: ptr.To(true),
		},
	}
}

// LoadConfig loads and parses configuration from a YAML file.
// Values absent from the file keep their defaults.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(&c.Server); err != nil {
		return err
	}
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}
	if c.Workspace.Template == "" {
		return fmt.Errorf("workspace.template is required")
	}
	if err := validateTraining(&c.Training); err != nil {
		return err
	}
	if err := validateTools(&c.Tools); err != nil {
		return err
	}
	if _, _, err := ParseDailyAt(c.Schedule.DailyAt); err != nil {
		return fmt.Errorf("schedule.dailyAt: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func validateServer(s *ServerConfig) error {
	if s.Endpoint == "" {
		return fmt.Errorf("server.endpoint is required")
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return fmt.Errorf("server.endpoint is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.endpoint must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.endpoint must include a host")
	}
	if s.Timeout < 0 || s.UploadTimeout < 0 || s.RetryDelay < 0 {
		return fmt.Errorf("server.timeout, server.uploadTimeout and server.retryDelay must not be negative")
	}
	return nil
}

func validateTraining(t *TrainingConfig) error {
	if t.MaxLoss <= 0 {
		return fmt.Errorf("training.maxLoss must be positive, got %g", t.MaxLoss)
	}
	if t.MaxIter <= 0 {
		return fmt.Errorf("training.maxIter must be positive, got %d", t.MaxIter)
	}
	if t.BaseLRFloor <= 0 {
		return fmt.Errorf("training.baseLRFloor must be positive, got %g", t.BaseLRFloor)
	}
	if err := t.Solver.Validate(); err != nil {
		return fmt.Errorf("training.solver: %w", err)
	}
	return nil
}

func validateTools(t *ToolsConfig) error {
	if t.Caffe == "" {
		return fmt.Errorf("tools.caffe is required")
	}
	if t.Convert == "" {
		return fmt.Errorf("tools.convert is required")
	}
	if t.EvalIterations <= 0 {
		return fmt.Errorf("tools.evalIterations must be positive, got %d", t.EvalIterations)
	}
	if t.GPUDevice < 0 {
		return fmt.Errorf("tools.gpuDevice must not be negative")
	}
	if t.TrainTimeout < 0 || t.EvalTimeout < 0 || t.ConvertTimeout < 0 {
		return fmt.Errorf("tool timeouts must not be negative")
	}
	return nil
}

// GetStateDir returns the status directory, defaulting to "<root>/.state"
func (c *Config) GetStateDir() string {
	if c.Workspace.StateDir == "" {
		return filepath.Join(c.Workspace.Root, ".state")
	}
	return c.Workspace.StateDir
}

// GetRunOnStart reports whether a cycle runs immediately at startup
func (c *Config) GetRunOnStart() bool {
	if c.Schedule.RunOnStart == nil {
		return true
	}
	return *c.Schedule.RunOnStart
}

// Caps returns the tuning caps for the adjustment rule
func (t *TrainingConfig) Caps() solver.Caps {
	return solver.Caps{MaxIter: t.MaxIter, BaseLRFloor: t.BaseLRFloor}
}

// ParseDailyAt parses an "HH:MM" wall-clock time
func ParseDailyAt(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
