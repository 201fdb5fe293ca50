// Package health provides health status reporting for cmdtree services
// with three-state statuses, aggregation, and error-message sanitization.
//
// Every service in the daemon answers Health() with a Status; the service
// manager aggregates those into one system status, and the metrics server
// serves the aggregate as JSON on /health.
//
// # Health States
//
// The package supports three health states:
//   - Healthy: service operating normally
//   - Degraded: service operating with reduced functionality
//   - Unhealthy: service not functioning properly
//
// The degraded middle state lets operational responses stay proportionate:
// a degraded NATS source is mid-reconnect and needs patience, an unhealthy
// one needs attention.
//
// # Basic Usage
//
// Building statuses:
//
//	st := health.NewHealthy("dispatcher", "Worker pool draining normally")
//	st = health.NewDegraded("nats-source", "Reconnecting after connection loss")
//	st = health.NewUnhealthy("websocket-source", "Listener closed unexpectedly")
//
//	if st.IsUnhealthy() {
//	    log.Printf("%s: %s", st.Component, st.Message)
//	}
//
// # Aggregation
//
// Combining per-service statuses into one system status:
//
//	system := health.Aggregate("cmdtree", []health.Status{
//	    dispatcher.Health(),
//	    natsSource.Health(),
//	    wsSource.Health(),
//	})
//
// Aggregation uses worst-case rules: any unhealthy service makes the
// system unhealthy; otherwise any degraded service makes it degraded;
// otherwise it is healthy. The inputs are attached as sub-statuses, so the
// JSON rendering shows the system verdict and the per-service detail
// together.
//
// # Converting Errors
//
// Building a status directly from a transport error:
//
//	if err := conn.Ping(); err != nil {
//	    return health.FromError("nats-source", err)
//	}
//
// Error messages are sanitized before exposure. URLs (http, nats, ws),
// file paths (Unix and Windows), IP addresses, ports, and
// credential-shaped fragments (password=..., token=...) are replaced with
// placeholder tags. Sanitization is not optional; over-redacting an
// occasional debug message is cheaper than leaking a connection string to
// a health dashboard.
//
// # Immutability
//
// Status is a value type. WithMetrics and WithSubStatus return modified
// copies and never share the sub-status slice, so statuses can be passed
// between goroutines and cached without locks.
//
// # Error Handling
//
// The package returns no errors: a Status is the result of error handling,
// not a step in error propagation. Services wrap their errors with the
// errors package first and convert to a Status at the reporting boundary.
package health
