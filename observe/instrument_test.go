package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingInstrumenter(t *testing.T, buf *bytes.Buffer) (*Instrumenter, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	m, _ := newTestMetrics(t)
	return NewInstrumenter(NewTracer(tp.Tracer("test")), m, NewLoggerWithWriter("debug", buf)), sr
}

func TestOperation_SpanName(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{Operation{Component: "ratelimit.store", Name: "upsert_increment"}, "ratelimit.store.upsert_increment"},
		{Operation{Name: "explore"}, "explore"},
	}
	for _, tt := range tests {
		if got := tt.op.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %q, want %q", got, tt.want)
		}
	}
}

func TestInstrument_Success(t *testing.T) {
	var buf bytes.Buffer
	in, sr := newRecordingInstrumenter(t, &buf)

	op := Operation{
		Component: "notes.compute",
		Name:      "explore",
		Attrs:     []attribute.KeyValue{attribute.Int("page", 2)},
	}
	called := false
	err := in.Instrument(context.Background(), op, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}
	if !called {
		t.Fatal("wrapped function not called")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "notes.compute.explore" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", spans[0].Status().Code)
	}

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["level"] != "debug" {
		t.Errorf("log entries = %v, want one debug entry", entries)
	}
}

func TestInstrument_ErrorPropagatesUnchanged(t *testing.T) {
	var buf bytes.Buffer
	in, sr := newRecordingInstrumenter(t, &buf)
	want := errors.New("connection reset")

	err := in.Instrument(context.Background(), Operation{Component: "ratelimit.store", Name: "find_active"}, func(context.Context) error {
		return want
	})
	if err != want {
		t.Fatalf("err = %v, want %v", err, want)
	}

	span := sr.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status().Code)
	}
	if len(span.Events()) == 0 {
		t.Error("expected error event on span")
	}

	e := decodeLines(t, &buf)[0]
	if e["level"] != "error" || e["error"] != "connection reset" {
		t.Errorf("log entry = %v", e)
	}
}

func TestInstrument_MissingName(t *testing.T) {
	in := NewInstrumenter(nil, nil, nil)
	err := in.Instrument(context.Background(), Operation{Component: "x"}, func(context.Context) error { return nil })
	if !errors.Is(err, ErrMissingOperationName) {
		t.Fatalf("err = %v, want ErrMissingOperationName", err)
	}
}

func TestInstrument_NilReceiverRunsFunction(t *testing.T) {
	var in *Instrumenter
	called := false
	err := in.Instrument(context.Background(), Operation{Name: "x"}, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("called = %v, err = %v", called, err)
	}
	if in.Logger() == nil || in.Metrics() == nil {
		t.Error("nil receiver accessors returned nil")
	}
}

func TestCall_ReturnsValue(t *testing.T) {
	in := NewInstrumenter(nil, nil, nil)
	got, err := Call(context.Background(), in, Operation{Name: "double"}, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("Call() = %d, %v; want 42, nil", got, err)
	}

	got, err = Call(context.Background(), in, Operation{Name: "fail"}, func(context.Context) (int, error) {
		return 7, errors.New("nope")
	})
	if err == nil || got != 0 {
		t.Fatalf("Call() = %d, %v; want zero value and error", got, err)
	}
}
