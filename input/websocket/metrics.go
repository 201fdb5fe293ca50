package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/cmdtree/metric"
)

// Rejection reasons for the rejected counter.
const (
	reasonParse   = "parse"
	reasonRefused = "refused"
	reasonDropped = "dropped"
	reasonError   = "error"
)

const serviceName = "websocket-source"

// sourceMetrics instruments the WebSocket source. Record methods are
// nil-safe so an uninstrumented source skips collection without
// branching at call sites.
type sourceMetrics struct {
	core *metric.Metrics

	accepted prometheus.Counter
	rejected *prometheus.CounterVec // by reason
	replies  prometheus.Counter

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	authFailures      prometheus.Counter
}

// newSourceMetrics creates and registers source metrics with the provided
// registry. A nil registry disables instrumentation.
func newSourceMetrics(registry *metric.MetricsRegistry) (*sourceMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &sourceMetrics{
		core: registry.CoreMetrics(),

		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "websocket_source",
			Name:      "accepted_total",
			Help:      "Frames decoded and submitted to the dispatcher",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "websocket_source",
			Name:      "rejected_total",
			Help:      "Frames discarded before execution, by reason",
		}, []string{"reason"}), // parse, refused, dropped, error

		replies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "websocket_source",
			Name:      "replies_total",
			Help:      "Responses written back to gateway connections",
		}),

		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cmdtree",
			Subsystem: "websocket_source",
			Name:      "connections_active",
			Help:      "Open gateway connections",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "websocket_source",
			Name:      "connections_total",
			Help:      "Gateway connections accepted since start",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "websocket_source",
			Name:      "auth_failures_total",
			Help:      "Upgrade requests rejected by authentication",
		}),
	}

	if err := registry.RegisterCounter(serviceName, "accepted", m.accepted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(serviceName, "rejected", m.rejected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(serviceName, "replies", m.replies); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(serviceName, "connections_active", m.connectionsActive); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(serviceName, "connections_total", m.connectionsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(serviceName, "auth_failures", m.authFailures); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *sourceMetrics) recordAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.core.RecordInvocationReceived(serviceName, "websocket")
}

func (m *sourceMetrics) recordRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *sourceMetrics) recordReply() {
	if m == nil {
		return
	}
	m.replies.Inc()
	m.core.RecordReplyPublished(serviceName, "websocket")
}

func (m *sourceMetrics) recordConnected() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

func (m *sourceMetrics) recordDisconnected() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *sourceMetrics) recordAuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}
