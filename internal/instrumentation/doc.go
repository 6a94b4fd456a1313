// Package instrumentation provides comprehensive OpenTelemetry instrumentation
// for the calchat server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, chat turns, LLM completions,
//     tool invocations, and Google Calendar API calls
//   - Distributed tracing for request flows and API calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_conversations: Gauge of conversations held in memory
//
// Chat Metrics:
//   - chat_turns_total: Counter of chat turns by status
//   - chat_turn_duration_seconds: Histogram of end-to-end chat turn durations
//
// LLM Metrics:
//   - llm_requests_total: Counter of completion requests by status
//   - llm_request_duration_seconds: Histogram of completion request durations
//
// Tool Metrics:
//   - tool_invocations_total: Counter of tool invocations by tool name and status
//   - tool_duration_seconds: Histogram of tool execution durations
//
// Calendar API Metrics:
//   - calendar_api_operations_total: Counter of Calendar API operations by operation, status
//   - calendar_api_operation_duration_seconds: Histogram of Calendar API operation durations
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling
//   - Tool invocations (tool.<name>)
//   - Google Calendar API calls (calendar.<operation>)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: calchat)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "calchat",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record an HTTP request
//	recorder.RecordHTTPRequest(ctx, "POST", "/ai/message", 200, time.Since(start))
//
//	// Record a Calendar API operation
//	recorder.RecordCalendarOperation(ctx, "list", "success", time.Since(start))
//
//	// Record a tool invocation
//	recorder.RecordToolInvocation(ctx, "list_events", "success", time.Since(start))
package instrumentation
