package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/cmdtree/health"
)

// Manager owns the daemon's services and drives their lifecycle. Services
// start in registration order and stop in reverse, so a source registered
// after the dispatcher stops before it and never submits into a torn-down
// pipeline.
type Manager struct {
	logger   *slog.Logger
	services map[string]Service
	order    []string // Track registration order for shutdown
	mu       sync.RWMutex
}

// NewManager creates a service manager. A nil logger falls back to
// slog.Default.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger.With("component", "service-manager"),
		services: make(map[string]Service),
	}
}

// Add registers a service under its own name. Registration order is the
// start order.
func (m *Manager) Add(svc Service) error {
	if svc == nil {
		return fmt.Errorf("service cannot be nil")
	}
	name := svc.Name()
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	m.services[name] = svc
	m.order = append(m.order, name)
	return nil
}

// Get returns a registered service by name
func (m *Manager) Get(name string) (Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	svc, exists := m.services[name]
	return svc, exists
}

// Services returns registered service names in start order
func (m *Manager) Services() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// StartAll starts every registered service in registration order. The first
// failure aborts the sequence; already-started services are left running for
// the caller's deferred StopAll.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	order := make([]string, len(m.order))
	copy(order, m.order)
	services := make(map[string]Service, len(m.services))
	for name, svc := range m.services {
		services[name] = svc
	}
	m.mu.RUnlock()

	m.logger.Debug("Beginning service startup sequence", "service_count", len(order))

	for _, name := range order {
		svc := services[name]
		m.logger.Debug("Starting service", "name", name)
		if err := svc.Start(ctx); err != nil {
			m.logger.Error("Failed to start service", "name", name, "error", err)
			return fmt.Errorf("failed to start service %s: %w", name, err)
		}
		m.logger.Debug("Service started successfully", "name", name)
	}

	m.logger.Info("All services started", "count", len(order))
	return nil
}

// StopAll stops all registered services in reverse order of registration
func (m *Manager) StopAll(timeout time.Duration) error {
	logger := m.logger.With("operation", "services-shutdown")

	m.mu.Lock()
	// Create reverse order slice for shutdown
	reverseOrder := make([]string, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		reverseOrder[len(m.order)-1-i] = m.order[i]
	}

	// Copy services map for safe access
	services := make(map[string]Service, len(m.services))
	for name, svc := range m.services {
		services[name] = svc
	}
	m.mu.Unlock()

	logger.Debug("Starting service shutdown sequence",
		"count", len(services),
		"timeout", timeout,
		"order", reverseOrder,
	)
	overallStart := time.Now()

	var errors []error
	// Stop services in reverse order of registration
	for _, name := range reverseOrder {
		if svc, exists := services[name]; exists {
			serviceStart := time.Now()
			logger.Debug("Stopping service", "service", name)

			if err := svc.Stop(timeout); err != nil {
				logger.Error("Service stop failed",
					"service", name,
					"duration_ms", time.Since(serviceStart).Milliseconds(),
					"error", err,
				)
				errors = append(errors, fmt.Errorf("failed to stop service %s: %w", name, err))
			} else {
				logger.Debug("Service stopped successfully",
					"service", name,
					"duration_ms", time.Since(serviceStart).Milliseconds(),
				)
			}
		}
	}

	// Clear the registry
	m.mu.Lock()
	m.services = make(map[string]Service)
	m.order = nil
	m.mu.Unlock()

	logger.Debug("Service shutdown sequence completed",
		"duration_ms", time.Since(overallStart).Milliseconds(),
		"error_count", len(errors),
	)

	// Return combined errors if any
	if len(errors) > 0 {
		return fmt.Errorf("stop errors: %v", errors)
	}
	return nil
}

// HealthyServices returns the names of services currently reporting healthy
func (m *Manager) HealthyServices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var healthy []string
	for _, name := range m.order {
		if m.services[name].IsHealthy() {
			healthy = append(healthy, name)
		}
	}
	return healthy
}

// UnhealthyServices returns the names of services currently reporting unhealthy
func (m *Manager) UnhealthyServices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var unhealthy []string
	for _, name := range m.order {
		if !m.services[name].IsHealthy() {
			unhealthy = append(unhealthy, name)
		}
	}
	return unhealthy
}

// Statuses returns a snapshot of every service's runtime information
func (m *Manager) Statuses() map[string]Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]Info, len(m.services))
	for name, svc := range m.services {
		statuses[name] = svc.GetStatus()
	}
	return statuses
}

// Health aggregates every service's health into one status. Any unhealthy
// service makes the aggregate unhealthy; any degraded one degrades it.
func (m *Manager) Health() health.Status {
	m.mu.RLock()
	subStatuses := make([]health.Status, 0, len(m.services))
	for _, name := range m.order {
		subStatuses = append(subStatuses, m.services[name].Health())
	}
	m.mu.RUnlock()

	return health.Aggregate("services", subStatuses)
}
