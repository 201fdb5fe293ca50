package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not domain-specific)
type Metrics struct {
	// Service metrics
	ServiceStatus       *prometheus.GaugeVec
	InvocationsReceived *prometheus.CounterVec
	InvocationsHandled  *prometheus.CounterVec
	RepliesPublished    *prometheus.CounterVec
	HandleDuration      *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec
	HealthCheckStatus   *prometheus.GaugeVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Service metrics
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cmdtree",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		InvocationsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cmdtree",
				Subsystem: "invocations",
				Name:      "received_total",
				Help:      "Total number of invocations received",
			},
			[]string{"service", "source"},
		),

		InvocationsHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cmdtree",
				Subsystem: "invocations",
				Name:      "handled_total",
				Help:      "Total number of invocations handled",
			},
			[]string{"service", "status"},
		),

		RepliesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cmdtree",
				Subsystem: "invocations",
				Name:      "replies_total",
				Help:      "Total number of replies published",
			},
			[]string{"service", "transport"},
		),

		HandleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cmdtree",
				Subsystem: "handling",
				Name:      "duration_seconds",
				Help:      "Invocation handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cmdtree",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cmdtree",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		// NATS metrics
		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cmdtree",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cmdtree",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cmdtree",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cmdtree",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordInvocationReceived increments the received invocation counter
func (c *Metrics) RecordInvocationReceived(service, source string) {
	c.InvocationsReceived.WithLabelValues(service, source).Inc()
}

// RecordInvocationHandled increments the handled invocation counter
func (c *Metrics) RecordInvocationHandled(service, status string) {
	c.InvocationsHandled.WithLabelValues(service, status).Inc()
}

// RecordReplyPublished increments the published reply counter
func (c *Metrics) RecordReplyPublished(service, transport string) {
	c.RepliesPublished.WithLabelValues(service, transport).Inc()
}

// RecordHandleDuration records invocation handling time
func (c *Metrics) RecordHandleDuration(service, operation string, duration time.Duration) {
	c.HandleDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordError increments error counter
func (c *Metrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
