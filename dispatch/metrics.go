package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/cmdtree/metric"
)

// dispatchMetrics holds Prometheus metrics for the invocation pipeline.
// All record methods are nil-safe so an uninstrumented dispatcher skips
// collection without branching at call sites.
type dispatchMetrics struct {
	core *metric.Metrics

	received    prometheus.Counter
	rateLimited prometheus.Counter
	dropped     prometheus.Counter

	executions *prometheus.CounterVec // by outcome
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
}

// newDispatchMetrics creates and registers dispatcher metrics with the
// provided registry. A nil registry disables instrumentation.
func newDispatchMetrics(registry *metric.MetricsRegistry) (*dispatchMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &dispatchMetrics{
		core: registry.CoreMetrics(),

		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "dispatch",
			Name:      "received_total",
			Help:      "Total invocations accepted for dispatch",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "dispatch",
			Name:      "rate_limited_total",
			Help:      "Invocations rejected by the per-client rate limiter",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Invocations dropped because the worker queue was full",
		}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "dispatch",
			Name:      "executions_total",
			Help:      "Processed invocations by outcome",
		}, []string{"outcome"}), // success, unknown, empty, disabled, context_denied, handler_error, panic

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cmdtree",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "End-to-end invocation processing time",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cmdtree",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Current worker queue depth",
		}),
	}

	if err := registry.RegisterCounter("dispatch", "received", m.received); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("dispatch", "rate_limited", m.rateLimited); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("dispatch", "dropped", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("dispatch", "executions", m.executions); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("dispatch", "duration", m.duration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("dispatch", "queue_depth", m.queueDepth); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *dispatchMetrics) recordReceived(queueDepth int) {
	if m == nil {
		return
	}
	m.received.Inc()
	m.queueDepth.Set(float64(queueDepth))
}

func (m *dispatchMetrics) recordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *dispatchMetrics) recordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *dispatchMetrics) recordExecution(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
	m.core.RecordInvocationHandled("dispatch", outcome)
	m.core.RecordHandleDuration("dispatch", "execute", elapsed)
}
