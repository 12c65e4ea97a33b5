package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CycleMetricsMeterName is the meter name for cycle-level metrics
	CycleMetricsMeterName = "github.com/labelhub/autotrain/cycle"

	// TrainingMetricsMeterName is the meter name for training session metrics
	TrainingMetricsMeterName = "github.com/labelhub/autotrain/training"
)

// CycleMetrics holds the instruments recorded once per cycle and per project outcome.
type CycleMetrics struct {
	cycleDuration metric.Float64Histogram
	outcomes      metric.Int64Counter
}

// NewCycleMetrics creates a new CycleMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewCycleMetrics(provider metric.MeterProvider) (*CycleMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CycleMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"autotrain_cycle_duration_seconds",
		metric.WithDescription("Duration of a full training cycle in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 10, 60, 300, 900, 1800, 3600, 7200, 21600, 43200),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter(
		"autotrain_project_outcomes_total",
		metric.WithDescription("Number of per-project cycle outcomes"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		return nil, err
	}

	return &CycleMetrics{
		cycleDuration: cycleDuration,
		outcomes:      outcomes,
	}, nil
}

// RecordCycleDuration records how long a cycle took.
func (m *CycleMetrics) RecordCycleDuration(ctx context.Context, duration time.Duration, projects int) {
	if m == nil || m.cycleDuration == nil {
		return
	}

	m.cycleDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Int("projects", projects)))
}

// RecordOutcome counts one project outcome.
func (m *CycleMetrics) RecordOutcome(ctx context.Context, project, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("project", project),
		attribute.String("outcome", outcome),
	}

	m.outcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// TrainingMetrics holds the instruments recorded per training session.
type TrainingMetrics struct {
	attempts  metric.Int64Histogram
	finalLoss metric.Float64Gauge
}

// NewTrainingMetrics creates a new TrainingMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewTrainingMetrics(provider metric.MeterProvider) (*TrainingMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(TrainingMetricsMeterName)

	attempts, err := meter.Int64Histogram(
		"autotrain_session_attempts",
		metric.WithDescription("Number of training attempts per session"),
		metric.WithUnit("{attempt}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 8, 10, 15, 20),
	)
	if err != nil {
		return nil, err
	}

	finalLoss, err := meter.Float64Gauge(
		"autotrain_session_final_loss",
		metric.WithDescription("Validation loss of the last attempt of a session"),
	)
	if err != nil {
		return nil, err
	}

	return &TrainingMetrics{
		attempts:  attempts,
		finalLoss: finalLoss,
	}, nil
}

// RecordSession records the attempt count and final loss of a finished session.
func (m *TrainingMetrics) RecordSession(ctx context.Context, project string, attempts int, loss float64, success bool) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("project", project),
		attribute.Bool("success", success),
	)

	if m.attempts != nil {
		m.attempts.Record(ctx, int64(attempts), attrs)
	}
	if m.finalLoss != nil {
		m.finalLoss.Record(ctx, loss, attrs)
	}
}
