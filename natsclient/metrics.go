package natsclient

import (
	"context"
	"time"

	"github.com/c360/cmdtree/metric"
)

// clientMetrics publishes connection health into the shared platform
// metrics. All methods are nil-safe so the client runs unchanged without a
// registry.
type clientMetrics struct {
	core *metric.Metrics
}

// newClientMetrics wires the client to the core NATS collectors of the
// provided registry. Returns nil when metrics are disabled.
func newClientMetrics(registry *metric.MetricsRegistry) *clientMetrics {
	if registry == nil {
		return nil
	}
	return &clientMetrics{core: registry.CoreMetrics()}
}

// recordStatus reflects a connection status transition in the connected
// gauge and the circuit breaker gauge.
func (m *clientMetrics) recordStatus(status ConnectionStatus) {
	if m == nil {
		return
	}
	m.core.RecordNATSStatus(status == StatusConnected)

	circuit := 0
	if status == StatusCircuitOpen {
		circuit = 1
	}
	m.core.RecordCircuitBreakerState(circuit)
}

// recordReconnect counts one successful reconnection.
func (m *clientMetrics) recordReconnect() {
	if m == nil {
		return
	}
	m.core.RecordNATSReconnect()
}

// recordRTT publishes the latest round-trip sample.
func (m *clientMetrics) recordRTT(rtt time.Duration) {
	if m == nil {
		return
	}
	m.core.RecordNATSRTT(rtt)
}

// startPoller starts a background goroutine that samples connection stats
// periodically. Returns a cancel function to stop the poller.
func (m *clientMetrics) startPoller(client *Client, interval time.Duration) context.CancelFunc {
	if m == nil {
		return func() {} // No-op if metrics disabled
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.recordStatus(client.Status())
				if rtt, err := client.RTT(); err == nil {
					m.recordRTT(rtt)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel
}
