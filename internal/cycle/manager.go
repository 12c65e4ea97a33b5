// Package cycle runs one full training cycle: project discovery, then for every
// project image sync, training and publish or discard, folded into a Report.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/labelhub/autotrain/internal/imagesync"
	"github.com/labelhub/autotrain/internal/orchestrator"
	"github.com/labelhub/autotrain/internal/otel"
	"github.com/labelhub/autotrain/internal/publisher"
	"github.com/labelhub/autotrain/internal/registry"
	"github.com/labelhub/autotrain/internal/status"
	"github.com/labelhub/autotrain/internal/telemetry"
	"github.com/labelhub/autotrain/internal/workspace"
)

// Manager runs training cycles
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/labelhub/autotrain/internal/cycle Manager
type Manager interface {
	// RunCycle runs one cycle over every project. It returns workspace.ErrLocked
	// without doing anything when another cycle holds the workspace.
	RunCycle(ctx context.Context) (*Report, error)
}

// ProjectSource lists projects with a ready workspace
type ProjectSource interface {
	Fetch(ctx context.Context) (*registry.Result, error)
}

// ImageSource pulls a project's unconsumed images
type ImageSource interface {
	Sync(ctx context.Context, p registry.Project) (*imagesync.Result, error)
}

// Trainer runs a project's training session
type Trainer interface {
	Run(ctx context.Context, p registry.Project) (*orchestrator.Result, error)
}

// Publisher uploads a project's artifact and acknowledges its images
type Publisher interface {
	Publish(ctx context.Context, p registry.Project, pulled *imagesync.Result) (*publisher.Result, error)
}

// Dependencies are the stages of a cycle.
type Dependencies struct {
	Projects  ProjectSource
	Images    ImageSource
	Trainer   Trainer
	Publisher Publisher
	Statuses  status.Persistence
}

// Option configures the default manager
type Option func(*defaultManager)

// WithTracer sets the tracer for cycle and project spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *defaultManager) {
		m.tracer = tracer
	}
}

// WithMetrics sets the cycle metrics recorder.
func WithMetrics(metrics *telemetry.CycleMetrics) Option {
	return func(m *defaultManager) {
		m.metrics = metrics
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *defaultManager) {
		m.now = now
	}
}

type defaultManager struct {
	root    string
	deps    Dependencies
	tracer  trace.Tracer
	metrics *telemetry.CycleMetrics
	now     func() time.Time
}

// NewManager creates a Manager over the workspace root.
func NewManager(root string, deps Dependencies, opts ...Option) Manager {
	m := &defaultManager{
		root: root,
		deps: deps,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunCycle processes projects in server order, one at a time. A project's
// failure is recorded in the report and the next project still runs. The
// returned error is set only when the cycle as a whole could not complete:
// the workspace is locked, the project list is unavailable, or ctx ended.
func (m *defaultManager) RunCycle(ctx context.Context) (*Report, error) {
	lock, err := workspace.TryLock(m.root)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release workspace lock", "error", err)
		}
	}()

	report := &Report{ID: uuid.NewString(), StartedAt: m.now()}
	logger := slog.With("cycle", report.ID)

	ctx, span := otel.StartSpan(ctx, m.tracer, "cycle.Run",
		trace.WithAttributes(otel.AttrCycleID.String(report.ID)),
	)
	defer span.End()

	logger.Info("Starting cycle")
	err = m.run(ctx, report, logger)

	report.FinishedAt = m.now()
	m.metrics.RecordCycleDuration(ctx, report.Duration(), len(report.Results))
	if err != nil {
		report.Error = err.Error()
		otel.RecordError(span, err)
		logger.Error("Cycle aborted", "error", err, "projects", len(report.Results))
		return report, err
	}

	logger.Info("Cycle finished",
		"duration", report.Duration(),
		"published", report.Count(OutcomePublished),
		"rolled_back", report.Count(OutcomeRolledBack),
		"idle", report.Count(OutcomeIdle),
		"failed", report.Count(OutcomeFailed),
	)
	return report, nil
}

func (m *defaultManager) run(ctx context.Context, report *Report, logger *slog.Logger) error {
	fetched, err := m.deps.Projects.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	for _, s := range fetched.Skipped {
		m.record(ctx, report, ProjectResult{
			Project:   s.Project.Name,
			ProjectID: s.Project.ID,
			Outcome:   OutcomeFailed,
			Reason:    s.Err.Error(),
			Err:       s.Err,
		})
	}

	for _, p := range fetched.Projects {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cycle interrupted: %w", err)
		}
		m.record(ctx, report, m.runProject(ctx, p, logger.With("project", p.Name)))
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cycle interrupted: %w", err)
	}
	return nil
}

// record appends res to the report and persists the project's status
func (m *defaultManager) record(ctx context.Context, report *Report, res ProjectResult) {
	report.Results = append(report.Results, res)
	m.metrics.RecordOutcome(ctx, res.Project, string(res.Outcome))

	if m.deps.Statuses == nil || workspace.CheckName(res.Project) != nil {
		return
	}
	prev, err := m.deps.Statuses.LoadStatus(ctx, res.Project)
	if err != nil {
		slog.Warn("Failed to load status, starting fresh", "project", res.Project, "error", err)
		prev = nil
	}
	next := status.Next(prev, status.Update{
		CycleID:  report.ID,
		Phase:    res.Outcome.Phase(),
		Message:  res.Reason,
		Attempts: res.Attempts,
		Loss:     res.FinalLoss,
		At:       m.now(),
	})
	if err := m.deps.Statuses.SaveStatus(ctx, res.Project, next); err != nil {
		slog.Error("Failed to save status", "project", res.Project, "error", err)
	}
}

func (m *defaultManager) runProject(ctx context.Context, p registry.Project, logger *slog.Logger) ProjectResult {
	ctx, span := otel.StartSpan(ctx, m.tracer, "cycle.project",
		trace.WithAttributes(otel.AttrProject.String(p.Name), otel.AttrProjectID.String(p.ID.String())),
	)
	defer span.End()

	res := m.process(ctx, p, logger)
	span.SetAttributes(otel.AttrOutcome.String(string(res.Outcome)))
	if res.Err != nil {
		otel.RecordError(span, res.Err)
		logger.Error("Project failed", "error", res.Err)
	} else {
		logger.Info("Project done", "outcome", res.Outcome, "attempts", res.Attempts)
	}
	return res
}

func (m *defaultManager) process(ctx context.Context, p registry.Project, logger *slog.Logger) ProjectResult {
	res := ProjectResult{Project: p.Name, ProjectID: p.ID}
	fail := func(pulled *imagesync.Result, err error) ProjectResult {
		if derr := publisher.Discard(p, pulled); derr != nil {
			logger.Warn("Failed to discard pulled images", "error", derr)
		}
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		res.Err = err
		return res
	}

	pulled, err := m.deps.Images.Sync(ctx, p)
	if err != nil {
		return fail(pulled, err)
	}
	if !pulled.HasNewImages() {
		res.Outcome = OutcomeIdle
		return res
	}
	logger.Info("Pulled new images", "batches", len(pulled.Batches), "images", len(pulled.Images))

	session, err := m.deps.Trainer.Run(ctx, p)
	if session != nil {
		res.Attempts = len(session.Attempts)
		if res.Attempts > 0 {
			loss := session.FinalLoss()
			res.FinalLoss = &loss
		}
	}
	if err != nil {
		return fail(pulled, err)
	}

	if !session.Success {
		if derr := publisher.Discard(p, pulled); derr != nil {
			logger.Warn("Failed to discard pulled images", "error", derr)
		}
		res.Outcome = OutcomeRolledBack
		res.Reason = session.StopReason
		return res
	}

	published, err := m.deps.Publisher.Publish(ctx, p, pulled)
	if err != nil {
		if rerr := orchestrator.Rollback(p.Layout); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return fail(pulled, fmt.Errorf("failed to publish model: %w", err))
	}

	res.Outcome = OutcomePublished
	res.PendingAcks = published.PendingAcks
	if len(published.PendingAcks) > 0 {
		res.Reason = fmt.Sprintf("%d records not acknowledged", len(published.PendingAcks))
	}
	return res
}
