package telemetry

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "default config is valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing service name",
			mutate:  func(c *Config) { c.ServiceName = "" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
		{
			name: "invalid trace exporter",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "jaeger"
			},
			wantErr: true,
		},
		{
			name:    "sampling rate out of range",
			mutate:  func(c *Config) { c.Tracing.SamplingRate = 1.5 },
			wantErr: true,
		},
		{
			name: "metrics enabled without listen address",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.ListenAddress = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProductionConfig(t *testing.T) {
	cfg := ProductionConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("production config invalid: %v", err)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format = %s, want json", cfg.Logging.Format)
	}
	if cfg.Tracing.Exporter != "otlp" {
		t.Errorf("Exporter = %s, want otlp", cfg.Tracing.Exporter)
	}
}

func TestDisabledMetricsAreNoOp(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	// Every recorder must tolerate the disabled state.
	m.RecordBuildStarted("python")
	m.RecordBuildCompleted("completed", time.Second)
	m.RecordProbe("python", "found", time.Millisecond)
	m.RecordToolInvocation("nuitka", "compile")
	m.RecordToolError("nuitka", "compile")
	m.RecordSessionResumed("persisted")
	m.RecordSessionExpired()
	m.RecordError("validation")
	m.SetQueuedBuilds(3)
	m.SetWorkerSlots(4)
}

func TestEnabledMetricsRegister(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{
		Enabled:   true,
		Namespace: "vaultbuild_test",
	})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	m.RecordBuildStarted("node")
	m.RecordBuildCompleted("failed", 90*time.Second)
	m.RecordProbe("node", "missing", 10*time.Millisecond)

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("no metric families registered")
	}
}

func TestLoggerComponentFields(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	// Chained field helpers must return usable loggers.
	child := logger.NewComponentLogger("orchestrator").
		WithProjectID("proj-1").
		WithJobID("job-1").
		WithTool("nuitka", "2.4")
	child.Debug("instrumentation smoke test")
}

func TestNewTelemetryDisabledTracing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = false
	cfg.Metrics.Enabled = false

	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry() error = %v", err)
	}

	ctx := tel.WithContext(t.Context())
	if FromTelemetryContext(ctx) != tel {
		t.Error("telemetry not retrievable from context")
	}

	if err := tel.Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
