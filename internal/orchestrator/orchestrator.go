// Package orchestrator runs one project's adaptive training session: dataset
// preparation, repeated train/evaluate attempts steered by the solver, and
// promotion or rollback of the published artifact.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/labelhub/autotrain/internal/dataset"
	"github.com/labelhub/autotrain/internal/failure"
	"github.com/labelhub/autotrain/internal/otel"
	"github.com/labelhub/autotrain/internal/registry"
	"github.com/labelhub/autotrain/internal/solver"
	"github.com/labelhub/autotrain/internal/telemetry"
	"github.com/labelhub/autotrain/internal/trainer"
	"github.com/labelhub/autotrain/internal/workspace"
)

// Preparer builds the trainer-ready dataset of a workspace.
type Preparer interface {
	Prepare(ctx context.Context, l workspace.Layout) (dataset.Split, error)
}

// Config is the tuning policy applied to every session.
type Config struct {
	// MaxLoss is the success threshold: a valid loss at or below it ends the session.
	MaxLoss  float64
	Defaults solver.Config
	Caps     solver.Caps
}

// Result describes a finished session.
type Result struct {
	Success bool
	// StopReason is the solver reason when the session ran out of adjustments.
	StopReason string
	Attempts   []solver.Attempt
	// Weights is the snapshot promoted to the canonical artifact on success.
	Weights string
}

// FinalLoss returns the loss of the last attempt, or the sentinel when there was none.
func (r *Result) FinalLoss() float64 {
	if r == nil || len(r.Attempts) == 0 {
		return solver.SentinelLoss
	}
	return r.Attempts[len(r.Attempts)-1].Loss
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTracer sets the tracer used for session and attempt spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithMetrics sets the training metrics recorder.
func WithMetrics(m *telemetry.TrainingMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// Orchestrator drives training sessions. Sessions run one at a time.
type Orchestrator struct {
	cfg      Config
	preparer Preparer
	adapter  trainer.Adapter
	tracer   trace.Tracer
	metrics  *telemetry.TrainingMetrics
}

// New creates an Orchestrator.
func New(cfg Config, preparer Preparer, adapter trainer.Adapter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		preparer: preparer,
		adapter:  adapter,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run trains p until a loss meets the threshold or the solver is exhausted.
//
// On success the attempt's weights replace the canonical artifact. Otherwise
// the artifact present before the session is restored, or removed if there was
// none. An error is returned only when the session could not be carried
// through: conversion failure, workspace I/O failure or cancellation.
func (o *Orchestrator) Run(ctx context.Context, p registry.Project) (*Result, error) {
	ctx, span := otel.StartSpan(ctx, o.tracer, "orchestrator.Run",
		trace.WithAttributes(otel.AttrProject.String(p.Name), otel.AttrProjectID.String(p.ID.String())),
	)
	defer span.End()

	l := p.Layout
	logger := slog.With("project", p.Name)

	if _, err := o.preparer.Prepare(ctx, l); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	hadArtifact, err := backup(l)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	result, err := o.tune(ctx, p, logger)
	if err == nil && result.Success {
		err = workspace.CopyFile(result.Weights, l.Artifact())
	}
	if err != nil || !result.Success {
		if rerr := restore(l, hadArtifact); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}

	if result != nil {
		o.metrics.RecordSession(ctx, p.Name, len(result.Attempts), result.FinalLoss(), err == nil && result.Success)
		span.SetAttributes(otel.AttrAttempt.Int(len(result.Attempts)), otel.AttrLoss.Float64(result.FinalLoss()))
	}
	if err != nil {
		otel.RecordError(span, err)
		return result, err
	}

	if result.Success {
		logger.Info("Training succeeded", "attempts", len(result.Attempts), "loss", result.FinalLoss())
	} else {
		logger.Warn("Training exhausted without reaching target loss",
			"attempts", len(result.Attempts),
			"loss", result.FinalLoss(),
			"max_loss", o.cfg.MaxLoss,
		)
	}
	return result, nil
}

func (o *Orchestrator) tune(ctx context.Context, p registry.Project, logger *slog.Logger) (*Result, error) {
	l := p.Layout
	session := solver.NewSession(l.SolverDescription(), o.cfg.Defaults, o.cfg.Caps)
	if err := session.Reset(); err != nil {
		return nil, err
	}

	result := &Result{}
	for attempt := 1; ; attempt++ {
		cfg, err := session.BeginAttempt()
		if err != nil {
			return result, err
		}

		loss, err := o.attempt(ctx, l, cfg, attempt, logger)
		if err != nil {
			result.Attempts = session.History()
			return result, err
		}
		session.Record(loss)
		result.Attempts = session.History()

		if loss >= 0 && loss <= o.cfg.MaxLoss {
			session.Stop()
			result.Success = true
			result.Weights = l.Resolve(cfg.SnapshotFile())
			return result, nil
		}

		decision, err := session.Adjust()
		if err != nil {
			return result, err
		}
		if decision.Stopped() {
			result.StopReason = decision.Reason
			return result, nil
		}
		logger.Info("Adjusted solver",
			"attempt", attempt,
			"loss", loss,
			"action", decision.Action,
			"reason", decision.Reason,
			"max_iter", decision.Next.MaxIter,
			"base_lr", decision.Next.BaseLR,
		)
	}
}

// attempt trains and evaluates once and returns the observed loss. Trainer and
// evaluator failures are logged and yield the sentinel; only cancellation and
// a snapshot that cannot be cleared are errors.
func (o *Orchestrator) attempt(
	ctx context.Context, l workspace.Layout, cfg solver.Config, n int, logger *slog.Logger,
) (float64, error) {
	ctx, span := otel.StartSpan(ctx, o.tracer, "orchestrator.attempt",
		trace.WithAttributes(
			otel.AttrAttempt.Int(n),
			otel.AttrMaxIter.Int(cfg.MaxIter),
			otel.AttrBaseLR.Float64(cfg.BaseLR),
		),
	)
	defer span.End()

	logger.Info("Starting training attempt", "attempt", n, "max_iter", cfg.MaxIter, "base_lr", cfg.BaseLR)

	// An earlier attempt with the same max_iter left weights under the same
	// name; a crashed run must not be evaluated on them.
	weights := l.Resolve(cfg.SnapshotFile())
	if err := os.Remove(weights); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, failure.Wrap(failure.KindFileSystem, err, "remove stale snapshot %s", weights)
	}

	trained, err := o.adapter.Train(ctx, trainer.TrainRequest{
		Dir:        l.Dir(),
		SolverPath: l.SolverDescription(),
	})
	if ctx.Err() != nil {
		return 0, fmt.Errorf("training interrupted: %w", ctx.Err())
	}
	if err != nil || !trained.Succeeded() {
		logger.Warn("Trainer failed, evaluating anyway",
			"attempt", n,
			"exit_code", trained.ExitCode,
			"error", err,
		)
	}

	evaluated, err := o.adapter.Evaluate(ctx, trainer.EvalRequest{
		Dir:           l.Dir(),
		NetDefinition: l.NetDefinition(),
		Weights:       weights,
		Mode:          cfg.SolverMode,
	})
	if ctx.Err() != nil {
		return 0, fmt.Errorf("evaluation interrupted: %w", ctx.Err())
	}
	if err != nil || !evaluated.Succeeded() {
		logger.Warn("Evaluator failed",
			"attempt", n,
			"exit_code", evaluated.ExitCode,
			"error", err,
		)
		if err == nil {
			err = failure.New(failure.KindSubprocess, "evaluator exited with status %d", evaluated.ExitCode)
		}
		otel.RecordError(span, err)
		return solver.SentinelLoss, nil
	}

	loss := evaluated.LossOrSentinel()
	if evaluated.FinalLoss == nil {
		logger.Warn("Evaluator reported no loss", "attempt", n)
	}
	span.SetAttributes(otel.AttrLoss.Float64(loss))
	logger.Info("Attempt evaluated", "attempt", n, "loss", loss)
	return loss, nil
}

// backup copies the published artifact over the backup. With no artifact, a
// stale backup is removed so a rollback cannot resurrect it.
func backup(l workspace.Layout) (bool, error) {
	if !workspace.Exists(l.Artifact()) {
		if err := os.Remove(l.Backup()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, failure.Wrap(failure.KindFileSystem, err, "remove stale backup")
		}
		return false, nil
	}
	if err := workspace.CopyFile(l.Artifact(), l.Backup()); err != nil {
		return false, err
	}
	return true, nil
}

// Rollback restores the artifact that was published before the last session,
// or removes the artifact if there was none. Used when a successful session's
// artifact could not be published.
func Rollback(l workspace.Layout) error {
	return restore(l, workspace.Exists(l.Backup()))
}

// restore puts the pre-session artifact back, or removes the artifact if there was none.
func restore(l workspace.Layout, hadArtifact bool) error {
	if hadArtifact {
		return workspace.CopyFile(l.Backup(), l.Artifact())
	}
	if err := os.Remove(l.Artifact()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return failure.Wrap(failure.KindFileSystem, err, "remove unsuccessful artifact")
	}
	return nil
}
