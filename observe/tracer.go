package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Operation describes a unit of work for telemetry purposes.
type Operation struct {
	Component string // e.g. "ratelimit.store", "notes.compute"
	Name      string // e.g. "upsert_increment", "explore"
	Attrs     []attribute.KeyValue
}

// SpanName returns the deterministic span name: <component>.<name> or <name>.
func (o Operation) SpanName() string {
	if o.Component != "" {
		return o.Component + "." + o.Name
	}
	return o.Name
}

func (o Operation) attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(o.Attrs)+2)
	attrs = append(attrs, attribute.String("operation.name", o.Name))
	if o.Component != "" {
		attrs = append(attrs, attribute.String("operation.component", o.Component))
	}
	return append(attrs, o.Attrs...)
}

// Tracer wraps OpenTelemetry tracing with operation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for the operation.
	StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps the given OpenTelemetry tracer. A nil tracer yields a no-op Tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(op.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("operation.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
