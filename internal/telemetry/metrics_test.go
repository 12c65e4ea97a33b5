package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetricNames(t *testing.T, reader *sdkmetric.ManualReader, scopeName string) []string {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var names []string
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != scopeName {
			continue
		}
		for _, m := range scope.Metrics {
			names = append(names, m.Name)
		}
	}
	return names
}

func TestNewCycleMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewCycleMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		t.Parallel()

		var metrics *CycleMetrics
		metrics.RecordCycleDuration(context.Background(), time.Second, 2)
		metrics.RecordOutcome(context.Background(), "cats", "published")
	})

	t.Run("records duration and outcomes", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewCycleMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)

		metrics.RecordCycleDuration(context.Background(), 90*time.Second, 3)
		metrics.RecordOutcome(context.Background(), "cats", "published")
		metrics.RecordOutcome(context.Background(), "dogs", "failed")

		names := collectMetricNames(t, reader, CycleMetricsMeterName)
		assert.ElementsMatch(t, []string{
			"autotrain_cycle_duration_seconds",
			"autotrain_project_outcomes_total",
		}, names)
	})
}

func TestNewTrainingMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewTrainingMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		t.Parallel()

		var metrics *TrainingMetrics
		metrics.RecordSession(context.Background(), "cats", 3, 0.1, true)
	})

	t.Run("records attempts and final loss", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewTrainingMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)

		metrics.RecordSession(context.Background(), "cats", 4, 0.15, true)

		names := collectMetricNames(t, reader, TrainingMetricsMeterName)
		assert.ElementsMatch(t, []string{
			"autotrain_session_attempts",
			"autotrain_session_final_loss",
		}, names)
	})
}
