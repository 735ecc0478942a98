package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixed(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(
		fixed("a", Healthy("ok")),
		fixed("b", Degraded("slow")),
	)

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results["b"].Status != StatusDegraded {
		t.Errorf("b status = %v, want degraded", results["b"].Status)
	}
	if got := OverallStatus(results); got != StatusDegraded {
		t.Errorf("OverallStatus() = %v, want degraded", got)
	}
}

func TestAggregator_RegisterReplaces(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(fixed("db", Unhealthy("down", nil)), fixed("cache", Healthy("ok")))
	agg.Register(fixed("db", Healthy("up")))

	names := agg.CheckerNames()
	if len(names) != 2 || names[0] != "db" || names[1] != "cache" {
		t.Errorf("CheckerNames() = %v, want [db cache]", names)
	}
	r, err := agg.Check(context.Background(), "db")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if r.Status != StatusHealthy {
		t.Errorf("db status = %v, want healthy", r.Status)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check() error = %v, want %v", err, ErrCheckerNotFound)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	block := make(chan struct{})
	defer close(block)
	agg.Register(
		NewCheckerFunc("stuck", func(context.Context) Result {
			<-block
			return Healthy("late")
		}),
		fixed("fast", Healthy("ok")),
	)

	results := agg.CheckAll(context.Background())
	stuck := results["stuck"]
	if stuck.Status != StatusUnhealthy || !errors.Is(stuck.Error, ErrCheckTimeout) {
		t.Errorf("stuck = %+v, want timeout", stuck)
	}
	if results["fast"].Status != StatusHealthy {
		t.Errorf("fast status = %v, want healthy", results["fast"].Status)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": {Status: StatusHealthy}}, StatusHealthy},
		{"one unhealthy", map[string]Result{
			"a": {Status: StatusDegraded},
			"b": {Status: StatusUnhealthy},
		}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("db", PingFunc(func(context.Context) error { return nil }))
	if r := ok.Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("status = %v, want healthy", r.Status)
	}

	boom := errors.New("refused")
	bad := NewPingChecker("db", PingFunc(func(context.Context) error { return boom }))
	r := bad.Check(context.Background())
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, boom) {
		t.Errorf("result = %+v, want unhealthy with %v", r, boom)
	}
	if bad.Name() != "db" {
		t.Errorf("Name() = %q", bad.Name())
	}
}
