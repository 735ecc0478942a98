package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records the service's measurements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic; instrument failures are dropped.
type Metrics interface {
	// RecordOperation records one operation's duration in
	// "<component>.duration_ms" and counts failures in "operation.errors".
	RecordOperation(ctx context.Context, op Operation, duration time.Duration, err error)

	// RecordAdmission counts an admission decision by outcome and identity kind.
	RecordAdmission(ctx context.Context, outcome, identityKind string)

	// RecordCacheLookup counts a cache lookup as a hit or a miss.
	RecordCacheLookup(ctx context.Context, scope string, hit bool)

	// RecordCacheEviction counts entries dropped by capacity or expiry.
	RecordCacheEviction(ctx context.Context, n int)
}

type metricsImpl struct {
	meter      metric.Meter
	errorCount metric.Int64Counter
	admissions metric.Int64Counter
	lookups    metric.Int64Counter
	evictions  metric.Int64Counter

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
}

// NewMetrics creates the service instruments on meter. A nil meter yields no-op instruments.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("noop")
	}

	errorCount, err := meter.Int64Counter(
		"operation.errors",
		metric.WithDescription("Total number of failed operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	admissions, err := meter.Int64Counter(
		"admission.decisions",
		metric.WithDescription("Admission decisions by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	lookups, err := meter.Int64Counter(
		"cache.lookups",
		metric.WithDescription("Query cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"cache.evictions",
		metric.WithDescription("Query cache entries evicted"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:      meter,
		errorCount: errorCount,
		admissions: admissions,
		lookups:    lookups,
		evictions:  evictions,
		histograms: make(map[string]metric.Float64Histogram),
	}, nil
}

func (m *metricsImpl) durationHistogram(component string) (metric.Float64Histogram, error) {
	name := "operation.duration_ms"
	if component != "" {
		name = component + ".duration_ms"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[name]; ok {
		return h, nil
	}
	h, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	m.histograms[name] = h
	return h, nil
}

func (m *metricsImpl) RecordOperation(ctx context.Context, op Operation, duration time.Duration, err error) {
	opt := metric.WithAttributes(op.attributes()...)

	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	h, herr := m.durationHistogram(op.Component)
	if herr != nil {
		return
	}
	h.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordAdmission(ctx context.Context, outcome, identityKind string) {
	m.admissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("identity.kind", identityKind),
	))
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, scope string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
		attribute.String("cache.scope", scope),
	))
}

func (m *metricsImpl) RecordCacheEviction(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.evictions.Add(ctx, int64(n))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordOperation(context.Context, Operation, time.Duration, error) {}
func (nopMetrics) RecordAdmission(context.Context, string, string)                 {}
func (nopMetrics) RecordCacheLookup(context.Context, string, bool)                 {}
func (nopMetrics) RecordCacheEviction(context.Context, int)                        {}
