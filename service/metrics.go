package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360/cmdtree/config"
	"github.com/c360/cmdtree/health"
	"github.com/c360/cmdtree/metric"
	"github.com/c360/cmdtree/pkg/security"
)

// Metrics is a service that provides the Prometheus metrics endpoint
type Metrics struct {
	*BaseService

	config       config.MetricsConfig
	server       *metric.Server          // Runtime state
	registry     *metric.MetricsRegistry // Dependency
	security     security.Config         // TLS settings for the endpoint
	healthSource func() health.Status    // Optional /health backing
}

// NewMetrics creates the metrics service. Defaults are applied for a zero
// port or empty path so callers can pass the config section as-is.
func NewMetrics(
	cfg config.MetricsConfig,
	securityCfg security.Config,
	registry *metric.MetricsRegistry,
	opts ...Option,
) (*Metrics, error) {
	// Apply defaults - clear and visible in constructor
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid metrics port: %d", cfg.Port)
	}

	baseOpts := append([]Option{WithMetrics(registry)}, opts...)
	m := &Metrics{
		BaseService: NewBaseServiceWithOptions("metrics", nil, baseOpts...),
		config:      cfg,
		registry:    registry,
		security:    securityCfg,
	}

	// Set health check
	m.SetHealthCheck(m.healthCheck)

	return m, nil
}

// SetHealthSource makes the /health endpoint serve fn's status as JSON.
// Must be called before Start.
func (m *Metrics) SetHealthSource(fn func() health.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthSource = fn
}

// Start starts the metrics HTTP server
func (m *Metrics) Start(ctx context.Context) error {
	// Call BaseService Start first
	if err := m.BaseService.Start(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return fmt.Errorf("metrics server already started")
	}

	// Create the metric server with the daemon's TLS settings
	var serverOpts []metric.ServerOption
	if m.healthSource != nil {
		serverOpts = append(serverOpts, metric.WithHealthSource(m.healthSource))
	}
	m.server = metric.NewServer(m.config.Port, m.config.Path, m.registry, m.security, serverOpts...)

	// Start the server in a goroutine
	go func() {
		slog.Info("Starting metrics server", "port", m.config.Port, "path", m.config.Path)
		if err := m.server.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server error", "error", err)
		}
	}()

	// Give server a moment to start
	time.Sleep(100 * time.Millisecond)

	slog.Info("Metrics service started successfully", "url", m.URL())

	return nil
}

// Stop stops the metrics HTTP server
func (m *Metrics) Stop(timeout time.Duration) error {
	m.mu.Lock()

	if m.server != nil {
		// Stop the metrics server
		if err := m.server.Stop(); err != nil {
			slog.Error("Error stopping metrics server", "error", err)
			m.mu.Unlock()
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
		m.server = nil
	}

	m.mu.Unlock()

	// Call BaseService Stop to handle status changes
	if err := m.BaseService.Stop(timeout); err != nil {
		return err
	}

	slog.Info("Metrics service stopped")

	return nil
}

// healthCheck performs health check for metrics service
func (m *Metrics) healthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.server == nil {
		return fmt.Errorf("metrics server not running")
	}

	return nil
}

// Port returns the port the metrics server is listening on
func (m *Metrics) Port() int {
	return m.config.Port
}

// Path returns the metrics endpoint path
func (m *Metrics) Path() string {
	return m.config.Path
}

// URL returns the full URL for the metrics endpoint
func (m *Metrics) URL() string {
	scheme := "http"
	if m.security.TLS.Server.Enabled {
		scheme = "https"
	}
	return fmt.Sprintf("%s://localhost:%d%s", scheme, m.config.Port, m.config.Path)
}
