// Package telemetry provides observability instrumentation for Vaultbuild.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry) and metrics (Prometheus) into a unified system for
// monitoring and debugging build orchestration.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("orchestrator")
//	logger = logger.WithProjectID("proj-123").WithJobID("job-456")
//	logger.Info("Starting build")
//	logger.WithError(err).Error("Build submission failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Builds, prerequisite probes and tool invocations each get dedicated span
// helpers:
//
//	ctx, span := tel.Tracer.StartBuildSpan(ctx, projectID, jobID)
//	defer span.End()
//
// # Metrics
//
// Metrics are registered against a private Prometheus registry and exposed
// over HTTP when enabled:
//
//	tel.Metrics.RecordBuildStarted("python")
//	tel.Metrics.RecordBuildCompleted("completed", duration)
//
// # Build Instrumentation
//
// WithBuildContext and EndBuildContext bracket one build lifecycle, wiring
// the span, the enriched logger and the build metrics together:
//
//	ctx = telemetry.WithBuildContext(ctx, projectID, jobID, track)
//	// ... run the build ...
//	telemetry.EndBuildContext(ctx, status, err)
package telemetry
