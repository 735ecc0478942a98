package observe

import (
	"context"
	"errors"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "minimal",
			cfg:  Config{ServiceName: "notegate"},
		},
		{
			name:    "missing service name",
			cfg:     Config{},
			wantErr: ErrMissingServiceName,
		},
		{
			name: "sample pct out of range",
			cfg: Config{
				ServiceName: "notegate",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.5},
			},
			wantErr: ErrInvalidSamplePct,
		},
		{
			name: "unknown tracing exporter",
			cfg: Config{
				ServiceName: "notegate",
				Tracing:     TracingConfig{Enabled: true, Exporter: "jaeger", SamplePct: 1},
			},
			wantErr: ErrInvalidTracingExporter,
		},
		{
			name: "unknown metrics exporter",
			cfg: Config{
				ServiceName: "notegate",
				Metrics:     MetricsConfig{Enabled: true, Exporter: "statsd"},
			},
			wantErr: ErrInvalidMetricsExporter,
		},
		{
			name: "unknown log level",
			cfg: Config{
				ServiceName: "notegate",
				Logging:     LoggingConfig{Enabled: true, Level: "trace"},
			},
			wantErr: ErrInvalidLogLevel,
		},
		{
			name: "disabled subsystems are not validated",
			cfg: Config{
				ServiceName: "notegate",
				Tracing:     TracingConfig{Exporter: "bogus"},
				Logging:     LoggingConfig{Level: "bogus"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewObserver_AllDisabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "notegate"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("observer returned nil primitive")
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_PrometheusRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "notegate",
		Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus", Registerer: reg},
		Logging:     LoggingConfig{Enabled: true, Level: "error"},
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	defer obs.Shutdown(context.Background())

	in, err := InstrumenterFromObserver(obs)
	if err != nil {
		t.Fatalf("InstrumenterFromObserver() error = %v", err)
	}
	in.Metrics().RecordAdmission(context.Background(), "allowed", "user")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "admission_decisions_total" {
			found = true
		}
	}
	if !found {
		t.Error("admission_decisions_total not exported to the registry")
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	_, err := NewObserver(context.Background(), Config{})
	if !errors.Is(err, ErrMissingServiceName) {
		t.Fatalf("err = %v, want ErrMissingServiceName", err)
	}
}
