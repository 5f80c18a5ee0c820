// Package telemetry provides observability instrumentation for redeploy.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), and metrics (Prometheus) into a unified system for
// monitoring deployment sessions.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "redeploy"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("coordinator")
//	logger = logger.WithSessionID("sess-123").WithJobID("job-456")
//	logger.Info("Publishing changes")
//	logger.WithError(err).Error("Publish failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into session flow and adapter latency:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	span.SetAttributes(
//	    attribute.String("session.id", sessionID),
//	    attribute.String("branch", branch),
//	)
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// The Metrics type implements deploy.Recorder, so the orchestration core
// reports publishes, discovery rounds, poll ticks, job outcomes, and cleanup
// steps without importing Prometheus. Key metrics exposed:
//
//   - redeploy_publishes_total{scenario,outcome}
//   - redeploy_job_discoveries_total{outcome}
//   - redeploy_poll_ticks_total{status}
//   - redeploy_job_outcomes_total{status}
//   - redeploy_cleanup_steps_total{step,outcome}
//   - redeploy_adapter_calls_total{adapter,operation}
//   - redeploy_adapter_call_duration_seconds{adapter,operation}
//   - redeploy_errors_by_kind_total{kind}
//   - redeploy_active_sessions
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending traces:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("telemetry shutdown error: %v", err)
//	}
package telemetry
