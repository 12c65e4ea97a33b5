package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestTracerProvider(t *testing.T) (*tracetest.InMemoryExporter, trace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func TestStartSpan_NilTracer(t *testing.T) {
	t.Parallel()

	ctx, span := StartSpan(context.Background(), nil, "project.train")

	require.NotNil(t, ctx)
	require.NotNil(t, span)
	assert.False(t, span.SpanContext().IsValid())
	assert.NotPanics(t, func() { span.End() })
}

func TestStartSpan_ChildOfCycle(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracerProvider(t)
	tracer := tp.Tracer("autotrain-test")

	ctx, cycleSpan := StartSpan(context.Background(), tracer, "cycle.run",
		trace.WithAttributes(AttrCycleID.String("c-1")),
	)
	_, projectSpan := StartSpan(ctx, tracer, "cycle.project",
		trace.WithAttributes(AttrProject.String("cats"), AttrProjectID.Int(7)),
	)
	projectSpan.End()
	cycleSpan.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	project := spans[0]
	assert.Equal(t, "cycle.project", project.Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), project.Parent.SpanID())

	attrs := map[string]any{}
	for _, kv := range project.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "cats", attrs["project.name"])
	assert.Equal(t, int64(7), attrs["project.id"])
}

func TestRecordError(t *testing.T) {
	t.Parallel()

	t.Run("nil span and nil error are ignored", func(t *testing.T) {
		t.Parallel()

		assert.NotPanics(t, func() { RecordError(nil, errors.New("boom")) })
		assert.NotPanics(t, func() { RecordError(nil, nil) })

		exporter, tp := newTestTracerProvider(t)
		_, span := tp.Tracer("autotrain-test").Start(context.Background(), "noop")
		RecordError(span, nil)
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Unset, spans[0].Status.Code)
		assert.Empty(t, spans[0].Events)
	})

	t.Run("error marks span failed with generic status", func(t *testing.T) {
		t.Parallel()

		exporter, tp := newTestTracerProvider(t)
		_, span := tp.Tracer("autotrain-test").Start(context.Background(), "project.train")
		RecordError(span, errors.New("evaluator exited with status 1"))
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "operation failed", spans[0].Status.Description)
		require.NotEmpty(t, spans[0].Events)
		assert.Equal(t, "exception", spans[0].Events[0].Name)
	})
}
