// Package observability provides logging, metrics, and tracing
// functionality for the FX gateway.
//
// # Logging
//
// The Logger interface provides structured logging backed by zap:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("upstream call succeeded",
//	    observability.Operation("quote"),
//	    observability.ResponseCode("00"),
//	)
//
// # Metrics
//
// Prometheus metrics for upstream FX calls, inbound API requests,
// certificate expiry, and configuration reloads:
//
//	metrics := observability.NewMetrics("fxgateway")
//	handler := metrics.Handler()
//
// # Tracing
//
// OpenTelemetry distributed tracing with OTLP gRPC export. Outbound
// FX calls carry W3C trace context to the provider.
package observability
