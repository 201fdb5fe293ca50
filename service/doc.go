// Package service provides service lifecycle management for the cmdtree
// daemon: the dispatcher, the invocation sources, and the metrics endpoint
// all run as services under one Manager.
//
// # Core Service Types
//
// BaseService: Foundation for all services with standardized lifecycle
// management:
//   - Lifecycle states: Stopped → Starting → Running → Stopping
//   - Health monitoring with periodic checks
//   - Metrics integration with CoreMetrics registry
//   - Context-based cancellation and graceful shutdown
//
// Manager: Ordered lifecycle orchestration:
//   - Services start in registration order, stop in reverse
//   - Health aggregation across all services
//   - Runtime status snapshots for the health endpoint
//
// Metrics: Service wrapper around the Prometheus exposition server, so the
// metrics endpoint participates in the same lifecycle as everything else.
//
// # Service Patterns
//
// Services embed BaseService and layer their own Start/Stop around it:
//
//	type MyService struct {
//	    *BaseService
//	    // service-specific fields
//	}
//
//	func NewMyService(cfg MyConfig, opts ...Option) (*MyService, error) {
//	    base := NewBaseServiceWithOptions("my-service", nil, opts...)
//	    svc := &MyService{BaseService: base}
//	    svc.SetHealthCheck(svc.healthCheck)
//	    return svc, nil
//	}
//
//	func (s *MyService) Start(ctx context.Context) error {
//	    if err := s.BaseService.Start(ctx); err != nil {
//	        return err
//	    }
//	    // Start background operations
//	    return nil
//	}
//
//	func (s *MyService) Stop(timeout time.Duration) error {
//	    // Tear down background operations first
//	    return s.BaseService.Stop(timeout)
//	}
//
// # Daemon Wiring
//
// The daemon registers its services with a Manager and drives them together:
//
//	manager := service.NewManager(logger)
//	manager.Add(metricsService)
//	manager.Add(dispatcher)
//	manager.Add(natsSource)
//
//	if err := manager.StartAll(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.StopAll(10 * time.Second)
//
// Registration order matters: sources registered after the dispatcher stop
// before it, so nothing submits into a torn-down pipeline during shutdown.
//
// # Health Monitoring
//
// Each service runs a periodic health check (WithHealthCheck /
// WithHealthInterval). A service with a NATS client additionally reports
// unhealthy while the connection is down. The Manager aggregates:
//
//	status := manager.Health() // unhealthy if any service is
//
// # Metrics Integration
//
// Services record status through CoreMetrics:
//   - cmdtree_service_status - Current service status (gauge)
//   - cmdtree_invocations_received_total - Invocation counter
//   - cmdtree_invocations_handled_total - Handling outcome counter
//
// Embedders call RecordProcessed() per handled invocation to keep the
// Info.InvocationsProcessed counter and last-activity timestamp current.
//
// # Error Handling
//
// Services follow the project error handling patterns:
//   - Configuration errors: Return during construction
//   - Runtime errors: Log and update health status
//   - Shutdown errors: Log but continue graceful shutdown
package service
