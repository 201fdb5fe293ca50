package nats

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

const serviceName = "nats-source"

// sourceMetrics instruments the NATS source. Record methods are nil-safe
// so an uninstrumented source skips collection without branching at call
// sites.
type sourceMetrics struct {
	core *metric.Metrics

	accepted prometheus.Counter
	rejected *prometheus.CounterVec // by reason
	replies  prometheus.Counter
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
			Subsystem: "nats_source",
			Name:      "accepted_total",
			Help:      "Messages decoded and submitted to the dispatcher",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "nats_source",
			Name:      "rejected_total",
			Help:      "Messages discarded before execution, by reason",
		}, []string{"reason"}), // parse, refused, dropped, error

		replies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "nats_source",
			Name:      "replies_total",
			Help:      "Responses published to reply subjects",
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

	return m, nil
}

func (m *sourceMetrics) recordAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.core.RecordInvocationReceived(serviceName, "nats")
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
	m.core.RecordReplyPublished(serviceName, "nats")
}
