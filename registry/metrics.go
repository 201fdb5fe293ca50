package registry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/cmdtree/metric"
)

// Metrics carries the registry domain gauges. All record methods are
// nil-safe, so uninstrumented trees skip collection without branching at
// call sites.
type Metrics struct {
	roots        prometheus.Gauge
	nodes        prometheus.Gauge
	placeholders prometheus.Gauge
	commands     prometheus.Gauge

	registrations *prometheus.CounterVec
}

// NewMetrics builds the registry gauges and registers them with registrar
// under the "registry" service key. A nil registrar returns nil, which
// disables instrumentation.
func NewMetrics(registrar *metric.MetricsRegistry) *Metrics {
	if registrar == nil {
		return nil
	}

	m := &Metrics{
		roots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cmdtree",
			Subsystem: "registry",
			Name:      "roots_active",
			Help:      "Number of registry trees in the directory",
		}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cmdtree",
			Subsystem: "registry",
			Name:      "nodes_active",
			Help:      "Number of real registry nodes across all trees",
		}),
		placeholders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cmdtree",
			Subsystem: "registry",
			Name:      "placeholders_active",
			Help:      "Number of placeholder nodes across all trees",
		}),
		commands: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cmdtree",
			Subsystem: "registry",
			Name:      "commands_registered",
			Help:      "Number of registered commands across all trees",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cmdtree",
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Command registration attempts by outcome",
		}, []string{"outcome"}),
	}

	_ = registrar.RegisterGauge("registry", "roots_active", m.roots)
	_ = registrar.RegisterGauge("registry", "nodes_active", m.nodes)
	_ = registrar.RegisterGauge("registry", "placeholders_active", m.placeholders)
	_ = registrar.RegisterGauge("registry", "commands_registered", m.commands)
	_ = registrar.RegisterCounterVec("registry", "registrations_total", m.registrations)

	return m
}

func (m *Metrics) addRoots(delta int) {
	if m == nil {
		return
	}
	m.roots.Add(float64(delta))
}

func (m *Metrics) addNodes(delta int) {
	if m == nil {
		return
	}
	m.nodes.Add(float64(delta))
}

func (m *Metrics) addPlaceholders(delta int) {
	if m == nil {
		return
	}
	m.placeholders.Add(float64(delta))
}

func (m *Metrics) addCommands(delta int) {
	if m == nil {
		return
	}
	m.commands.Add(float64(delta))
}

func (m *Metrics) recordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}
