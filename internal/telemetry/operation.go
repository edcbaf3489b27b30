// Package telemetry wraps control-plane operations in OpenTelemetry spans.
package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "meshgate"

// Setup installs a process-wide tracer provider and returns its shutdown
// function. Span export is left to whatever the environment configures;
// without an exporter spans are recorded and dropped, which is fine for a
// daemon that is mostly traced in development.
func Setup() func(context.Context) error {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// Operation is one traced control-plane operation.
type Operation struct {
	ctx  context.Context
	span trace.Span
}

// StartOperation opens a span for the named operation.
func StartOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) *Operation {
	opCtx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	return &Operation{ctx: opCtx, span: span}
}

// Context returns the span context for downstream calls.
func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// End closes the span, recording err if non-nil.
func (o *Operation) End(err error) {
	if o == nil || o.span == nil {
		return
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	o.span.End()
}
