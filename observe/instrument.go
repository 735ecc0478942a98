package observe

import (
	"context"
	"time"
)

// Instrumenter wraps operations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
//   - A nil *Instrumenter runs the function without telemetry.
type Instrumenter struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

// NewInstrumenter creates an Instrumenter. Nil components are replaced with no-ops.
func NewInstrumenter(tracer Tracer, metrics Metrics, logger Logger) *Instrumenter {
	if tracer == nil {
		tracer = NewTracer(nil)
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Instrumenter{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// InstrumenterFromObserver builds an Instrumenter from an Observer's primitives.
func InstrumenterFromObserver(obs Observer) (*Instrumenter, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewInstrumenter(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Metrics returns the Instrumenter's metrics, or no-op metrics for a nil receiver.
func (i *Instrumenter) Metrics() Metrics {
	if i == nil {
		return NopMetrics()
	}
	return i.metrics
}

// Logger returns the Instrumenter's logger, or a no-op logger for a nil receiver.
func (i *Instrumenter) Logger() Logger {
	if i == nil {
		return NopLogger()
	}
	return i.logger
}

// Instrument runs fn inside a span, records its duration and logs failures.
// Successful runs are logged at debug level since they sit on the request path.
func (i *Instrumenter) Instrument(ctx context.Context, op Operation, fn func(ctx context.Context) error) error {
	if op.Name == "" {
		return ErrMissingOperationName
	}
	if i == nil {
		return fn(ctx)
	}

	ctx, span := i.tracer.StartSpan(ctx, op)
	start := i.now()

	err := fn(ctx)

	duration := i.now().Sub(start)
	i.tracer.EndSpan(span, err)
	i.metrics.RecordOperation(ctx, op, duration, err)

	fields := []Field{
		F("operation", op.SpanName()),
		F("duration_ms", float64(duration.Microseconds())/1000),
	}
	if err != nil {
		fields = append(fields, F("error", err))
		i.logger.Error(ctx, "operation failed", fields...)
	} else {
		i.logger.Debug(ctx, "operation completed", fields...)
	}
	return err
}

// Call is Instrument for functions that produce a value.
func Call[T any](ctx context.Context, i *Instrumenter, op Operation, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := i.Instrument(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
