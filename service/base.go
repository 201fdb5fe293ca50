// Package service provides base functionality and common patterns for
// long-running services in the cmdtree daemon. It includes health
// monitoring, lifecycle management, and metric collection capabilities.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/cmdtree/config"
	"github.com/c360/cmdtree/health"
	"github.com/c360/cmdtree/metric"
	"github.com/c360/cmdtree/natsclient"
)

// Service is the contract every cmdtree service satisfies. The daemon's
// manager starts, stops, and polls services only through this interface.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Status() Status
	IsHealthy() bool
	GetStatus() Info
	Health() health.Status
	RegisterMetrics(registrar metric.MetricsRegistrar) error
}

// Status is a service lifecycle state.
type Status int

// Lifecycle states, in the order a service moves through them.
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Info is a point-in-time snapshot of a service's runtime counters.
type Info struct {
	Name                 string        `json:"name"`
	Status               Status        `json:"status"`
	Uptime               time.Duration `json:"uptime"`
	StartTime            time.Time     `json:"start_time"`
	InvocationsProcessed int64         `json:"invocations_processed"`
	LastActivity         time.Time     `json:"last_activity"`
	HealthChecks         int64         `json:"health_checks"`
	FailedHealthChecks   int64         `json:"failed_health_checks"`
}

// HealthCheckFunc reports whether the service is currently able to do its
// job. A nil return means healthy.
type HealthCheckFunc func() error

// Option configures a BaseService at construction time.
type Option func(*BaseService)

// errValue wraps an error for atomic.Value, which cannot hold a nil
// interface directly.
type errValue struct{ err error }

// BaseService carries the lifecycle, health, and counter plumbing shared by
// the dispatcher and input sources. Embedders implement their own Start and
// Stop and call through to the base versions.
type BaseService struct {
	name            string
	config          *config.Config
	nats            *natsclient.Client
	metricsRegistry *metric.MetricsRegistry
	logger          *slog.Logger

	status    atomic.Value // Status
	startTime atomic.Value // time.Time
	healthy   atomic.Bool

	invocationsProcessed atomic.Int64
	healthChecks         atomic.Int64
	failedHealthChecks   atomic.Int64
	lastActivity         atomic.Value // time.Time
	lastHealthErr        atomic.Value // errValue

	healthCheckFunc HealthCheckFunc
	healthTicker    *time.Ticker
	healthInterval  time.Duration
	onHealthChange  func(bool)

	done      chan struct{}
	waitGroup sync.WaitGroup
	mu        sync.RWMutex
}

// NewBaseServiceWithOptions builds a BaseService named name, applying opts
// over the defaults (30s health interval, slog.Default tagged with the
// service name).
func NewBaseServiceWithOptions(name string, cfg *config.Config, opts ...Option) *BaseService {
	s := &BaseService{
		name:           name,
		config:         cfg,
		healthInterval: 30 * time.Second,
		logger:         slog.Default().With("service", name),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setStatus(StatusStopped)
	s.startTime.Store(time.Time{})
	s.lastActivity.Store(time.Time{})
	return s
}

// WithNATS wires the shared NATS client so the default health check can
// watch its connection state.
func WithNATS(client *natsclient.Client) Option {
	return func(s *BaseService) {
		s.nats = client
	}
}

// WithMetrics wires the metrics registry. Without it status transitions are
// not exported.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *BaseService) {
		s.metricsRegistry = registry
	}
}

// WithLogger replaces the default logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *BaseService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealthCheck sets the custom health check run on every tick.
func WithHealthCheck(fn HealthCheckFunc) Option {
	return func(s *BaseService) {
		s.healthCheckFunc = fn
	}
}

// WithHealthInterval overrides how often the health check runs. Zero
// disables the monitor entirely.
func WithHealthInterval(interval time.Duration) Option {
	return func(s *BaseService) {
		s.healthInterval = interval
	}
}

// OnHealthChange registers a callback fired whenever the healthy flag
// flips. The callback runs on its own goroutine.
func OnHealthChange(fn func(bool)) Option {
	return func(s *BaseService) {
		s.onHealthChange = fn
	}
}

// Name returns the service name.
func (s *BaseService) Name() string { return s.name }

// Status returns the current lifecycle state.
func (s *BaseService) Status() Status { return s.status.Load().(Status) }

// IsHealthy reports the result of the most recent health check.
func (s *BaseService) IsHealthy() bool { return s.healthy.Load() }

// setStatus stores the new lifecycle state and mirrors it to the metrics
// registry when one is wired.
func (s *BaseService) setStatus(st Status) {
	s.status.Store(st)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(st))
	}
}

// Health maps the service's lifecycle and health-check state onto the
// shared health.Status shape used by the /health endpoint.
func (s *BaseService) Health() health.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.healthy.Load() {
		// The last health check error, sanitized, when there is one.
		if v, ok := s.lastHealthErr.Load().(errValue); ok && v.err != nil {
			return health.FromError(s.name, v.err)
		}
		return health.NewUnhealthy(s.name,
			fmt.Sprintf("Service is unhealthy (failed checks: %d)", s.failedHealthChecks.Load()))
	}

	switch st := s.Status(); st {
	case StatusRunning:
		return health.NewHealthy(s.name, "Service operating normally")
	case StatusStarting:
		return health.NewDegraded(s.name, "Service is starting")
	case StatusStopping:
		return health.NewDegraded(s.name, "Service is stopping")
	case StatusStopped:
		return health.NewUnhealthy(s.name, "Service is stopped")
	default:
		return health.NewUnhealthy(s.name, fmt.Sprintf("Unknown status: %v", st))
	}
}

// Start begins the lifecycle: health monitoring plus a watcher that shuts
// the service down when ctx is canceled. Starting an already-running
// service is a no-op.
func (s *BaseService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.Status(); st == StatusRunning || st == StatusStarting {
		return nil
	}
	s.setStatus(StatusStarting)

	s.done = make(chan struct{})
	now := time.Now()
	s.startTime.Store(now)
	s.lastActivity.Store(now)

	if s.healthInterval > 0 {
		s.healthTicker = time.NewTicker(s.healthInterval)
		s.waitGroup.Add(1)
		go s.healthMonitor()

		// First check runs after a short delay so embedders finish
		// starting their own goroutines first.
		go func() {
			time.Sleep(200 * time.Millisecond)
			s.performHealthCheck()
		}()
	}

	s.waitGroup.Add(1)
	go s.watchContext(ctx)

	s.setStatus(StatusRunning)
	return nil
}

// Stop shuts the service down, waiting up to timeout for its goroutines to
// drain. A zero timeout means 5 seconds. Stopping a stopped service is a
// no-op.
func (s *BaseService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.Status(); st == StatusStopped || st == StatusStopping {
		return nil
	}
	s.setStatus(StatusStopping)

	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
	if s.healthTicker != nil {
		s.healthTicker.Stop()
	}

	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if !s.waitWithTimeout(timeout) {
		s.logger.Warn("service goroutines did not drain before deadline", "timeout", timeout)
	}

	s.setStatus(StatusStopped)
	s.healthy.Store(false)
	return nil
}

// waitWithTimeout waits for the service's goroutines, returning false if
// the deadline passed first.
func (s *BaseService) waitWithTimeout(timeout time.Duration) bool {
	drained := make(chan struct{})
	go func() {
		s.waitGroup.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return true
	case <-time.After(timeout):
		return false
	}
}

// SetHealthCheck replaces the health check function after construction.
func (s *BaseService) SetHealthCheck(fn HealthCheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthCheckFunc = fn
}

// OnHealthChange replaces the health change callback after construction.
func (s *BaseService) OnHealthChange(callback func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHealthChange = callback
}

// GetStatus returns a snapshot of the service's runtime counters.
func (s *BaseService) GetStatus() Info {
	startTime := s.startTime.Load().(time.Time)

	var uptime time.Duration
	if !startTime.IsZero() && s.Status() == StatusRunning {
		uptime = time.Since(startTime)
	}

	return Info{
		Name:                 s.name,
		Status:               s.Status(),
		Uptime:               uptime,
		StartTime:            startTime,
		InvocationsProcessed: s.invocationsProcessed.Load(),
		LastActivity:         s.lastActivity.Load().(time.Time),
		HealthChecks:         s.healthChecks.Load(),
		FailedHealthChecks:   s.failedHealthChecks.Load(),
	}
}

// RecordProcessed notes one handled invocation and refreshes last activity.
func (s *BaseService) RecordProcessed() {
	s.invocationsProcessed.Add(1)
	s.lastActivity.Store(time.Now())
}

// RegisterMetrics is a no-op on the base; services with their own metrics
// override it.
func (s *BaseService) RegisterMetrics(_ metric.MetricsRegistrar) error {
	return nil
}

func (s *BaseService) healthMonitor() {
	defer s.waitGroup.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.healthTicker.C:
			s.performHealthCheck()
		}
	}
}

// performHealthCheck runs the custom check if set, then the built-in NATS
// connectivity check, records the outcome, and fires the change callback
// when the healthy flag flips.
func (s *BaseService) performHealthCheck() {
	s.healthChecks.Add(1)

	s.mu.RLock()
	check := s.healthCheckFunc
	s.mu.RUnlock()

	var err error
	if check != nil {
		err = check()
	}
	if err == nil && s.nats != nil && !s.nats.IsHealthy() {
		err = natsclient.ErrNotConnected
	}

	wasHealthy := s.healthy.Load()
	isHealthy := err == nil
	if err != nil {
		s.failedHealthChecks.Add(1)
	}
	s.lastHealthErr.Store(errValue{err})
	s.healthy.Store(isHealthy)

	if wasHealthy != isHealthy && s.onHealthChange != nil {
		go s.onHealthChange(isHealthy)
	}
}

// watchContext shuts the service down when the parent context is canceled,
// unless Stop already got there first.
func (s *BaseService) watchContext(ctx context.Context) {
	defer s.waitGroup.Done()
	select {
	case <-ctx.Done():
		s.shutdownOnCancel()
	case <-s.done:
	}
}

// shutdownOnCancel moves a running service to stopped without taking the
// mutex, since Stop may be blocked waiting on this very goroutine. The CAS
// keeps it from racing a concurrent Stop.
func (s *BaseService) shutdownOnCancel() {
	if !s.status.CompareAndSwap(StatusRunning, StatusStopping) {
		// Stop is already driving the transition.
		return
	}
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(StatusStopping))
	}

	if s.healthTicker != nil {
		s.healthTicker.Stop()
	}

	s.setStatus(StatusStopped)
	s.healthy.Store(false)
}
