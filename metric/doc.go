// Package metric provides Prometheus-based metrics collection and HTTP server
// for platform monitoring and observability.
//
// The package offers a centralized metrics registry managing both core platform
// metrics (service status, invocation throughput, NATS health) and custom
// service-specific metrics. It includes an HTTP server exposing metrics in
// Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Service Registry: Extensible registration for service-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: Metrics endpoint with health checks (Server type)
//
// This architecture separates infrastructure concerns (core metrics) from
// application concerns (service-specific metrics) while providing a unified
// metrics endpoint for monitoring systems.
//
// # Basic Usage
//
// Setting up metrics collection and HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	securityCfg := security.Config{} // Platform security config
//	server := metric.NewServer(9090, "/metrics", registry, securityCfg)
//
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	// Record core platform metrics
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("dispatcher", 2)
//	coreMetrics.RecordInvocationReceived("dispatcher", "nats")
//
// The metrics server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/health.
//
// # Core Metrics
//
// The package automatically registers core platform metrics tracking:
//
//   - Service lifecycle: service_status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)
//   - Invocation flow: invocations_received_total, invocations_handled_total, invocations_replies_total
//   - Handling performance: handling_duration_seconds
//   - NATS connectivity: nats_connected, nats_rtt_milliseconds, nats_reconnects_total
//   - Error tracking: errors_total
//
// Access core metrics through the registry:
//
//	coreMetrics := registry.CoreMetrics()
//
//	coreMetrics.RecordServiceStatus("dispatcher", 2) // 2 = running
//	coreMetrics.RecordInvocationReceived("dispatcher", "websocket")
//	coreMetrics.RecordInvocationHandled("dispatcher", "ok")
//	coreMetrics.RecordHandleDuration("dispatcher", "execute", 150*time.Millisecond)
//	coreMetrics.RecordError("dispatcher", "handler")
//
// # Service-Specific Metrics
//
// Services register custom metrics through the registry. Metrics are keyed
// by service and metric name, so two services may reuse a metric name
// without colliding in the registry's own bookkeeping:
//
//	requestCounter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "cmdtree",
//	    Subsystem: "registry",
//	    Name:      "registrations_total",
//	    Help:      "Total command registrations",
//	})
//	if err := registry.RegisterCounter("registry", "registrations_total", requestCounter); err != nil {
//	    log.Printf("register metric: %v", err)
//	}
//
// Registration fails when a metric with the same service and name already
// exists, or when the collector conflicts with one already known to the
// underlying Prometheus registry. Unregister removes a metric by the same
// key and reports whether anything was removed.
package metric
