// Package otel holds span helpers and the attribute keys shared by autotrain traces.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on cycle, project and attempt spans.
const (
	AttrCycleID    = attribute.Key("cycle.id")
	AttrProject    = attribute.Key("project.name")
	AttrProjectID  = attribute.Key("project.id")
	AttrBatchCount = attribute.Key("project.batches")
	AttrAttempt    = attribute.Key("training.attempt")
	AttrMaxIter    = attribute.Key("training.max_iter")
	AttrBaseLR     = attribute.Key("training.base_lr")
	AttrLoss       = attribute.Key("training.loss")
	AttrOutcome    = attribute.Key("project.outcome")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the span already in ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span failed.
// The status description stays generic; the error text lives in the exception event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
