package nats

import (
	"testing"

	"github.com/c360/cmdtree/metric"
)

func TestSourceMetrics_Creation(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	metrics, err := newSourceMetrics(registry)
	if err != nil {
		t.Fatalf("Expected metrics to be created, got error: %v", err)
	}
	if metrics == nil {
		t.Fatal("Expected metrics to be created, but got nil")
	}

	if metrics.accepted == nil {
		t.Fatal("Expected accepted metric to be created")
	}
	if metrics.rejected == nil {
		t.Fatal("Expected rejected metric to be created")
	}
	if metrics.replies == nil {
		t.Fatal("Expected replies metric to be created")
	}
	if metrics.core == nil {
		t.Fatal("Expected core metrics to be wired")
	}

	// Record methods must not panic once wired.
	metrics.recordAccepted()
	metrics.recordRejected(reasonParse)
	metrics.recordReply()
}

func TestSourceMetrics_NilRegistry(t *testing.T) {
	metrics, err := newSourceMetrics(nil)
	if err != nil {
		t.Fatalf("Expected no error for nil registry, got: %v", err)
	}
	if metrics != nil {
		t.Fatal("Expected nil metrics when registry is nil")
	}

	// Nil receiver record methods are no-ops.
	metrics.recordAccepted()
	metrics.recordRejected(reasonDropped)
	metrics.recordReply()
}

func TestSourceMetrics_DuplicateRegistration(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	if _, err := newSourceMetrics(registry); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	if _, err := newSourceMetrics(registry); err == nil {
		t.Fatal("Expected duplicate registration to fail")
	}
}
