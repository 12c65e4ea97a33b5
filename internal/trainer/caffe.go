package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/labelhub/autotrain/internal/failure"
	"github.com/labelhub/autotrain/internal/process"
	"github.com/labelhub/autotrain/internal/solver"
)

// CaffeConfig configures the Caffe CLI adapter.
type CaffeConfig struct {
	Tool           string
	EvalIterations int
	GPUDevice      int
	TrainTimeout   time.Duration
	EvalTimeout    time.Duration
}

// Caffe runs `caffe train` and `caffe test`. Only one run holds the device at a time.
type Caffe struct {
	cfg    CaffeConfig
	device *semaphore.Weighted
}

var _ Adapter = (*Caffe)(nil)

// NewCaffe creates a Caffe adapter.
func NewCaffe(cfg CaffeConfig) *Caffe {
	return &Caffe{
		cfg:    cfg,
		device: semaphore.NewWeighted(1),
	}
}

// Train implements Adapter.
func (c *Caffe) Train(ctx context.Context, req TrainRequest) (Result, error) {
	cmd := process.Command{
		Path:    c.cfg.Tool,
		Args:    []string{"train", "--solver=" + req.SolverPath},
		Dir:     req.Dir,
		Timeout: c.cfg.TrainTimeout,
		OnStderrLine: func(line string) {
			slog.Debug("caffe train", "dir", req.Dir, "line", line)
		},
	}
	res, err := c.run(ctx, cmd)
	if err != nil {
		return Result{ExitCode: exitCode(res)}, err
	}
	return Result{ExitCode: res.ExitCode}, nil
}

// Evaluate implements Adapter.
func (c *Caffe) Evaluate(ctx context.Context, req EvalRequest) (Result, error) {
	args := []string{
		"test",
		"-model", req.NetDefinition,
		"-weights", req.Weights,
		"-iterations", strconv.Itoa(c.cfg.EvalIterations),
	}
	if req.Mode == solver.ModeGPU {
		args = append(args, "-gpu", strconv.Itoa(c.cfg.GPUDevice))
	}

	var parser LossParser
	cmd := process.Command{
		Path:    c.cfg.Tool,
		Args:    args,
		Dir:     req.Dir,
		Timeout: c.cfg.EvalTimeout,
		OnStderrLine: func(line string) {
			slog.Debug("caffe test", "dir", req.Dir, "line", line)
			parser.Feed(line)
		},
	}
	res, err := c.run(ctx, cmd)
	if err != nil {
		return Result{ExitCode: exitCode(res)}, err
	}
	return Result{ExitCode: res.ExitCode, FinalLoss: parser.Loss()}, nil
}

func (c *Caffe) run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	if err := c.device.Acquire(ctx, 1); err != nil {
		return nil, failure.Wrap(failure.KindSubprocess, err, "wait for trainer device")
	}
	defer c.device.Release(1)

	slog.Debug("Running trainer", "command", cmd.Describe(), "dir", cmd.Dir)
	res, err := process.Run(ctx, cmd)
	if err != nil {
		return res, fmt.Errorf("caffe %s: %w", cmd.Args[0], err)
	}
	return res, nil
}

func exitCode(res *process.Result) int {
	if res == nil {
		return -1
	}
	return res.ExitCode
}
