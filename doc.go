// Package cmdtree provides a concurrent, hierarchical command registry and
// dispatch pipeline for chat-command services.
//
// # Architecture
//
// Each connected client (a bot account, a tenant, a test harness) owns a tree
// of registries. Registries hold commands under a dual index (explicit
// prefix+name signatures and bare aliases) with priority buckets, and may
// nest sub-registries and placeholders. Resolution walks a message's first
// token against the tree, honoring per-registry prefixes, enablement gates,
// and context gates, and returns the single effective command.
//
//	┌────────────┐   ┌─────────────┐
//	│ NATS       │   │ WebSocket   │    invocation sources
//	│ source     │   │ source      │    (input/nats, input/websocket)
//	└─────┬──────┘   └──────┬──────┘
//	      │    Submitter    │
//	      └───────┬─────────┘
//	              ↓
//	      ┌───────────────┐
//	      │  Dispatcher   │    bounded worker pool, rate limits,
//	      │  (dispatch)   │    gate checks, panic isolation
//	      └───────┬───────┘
//	              ↓
//	      ┌───────────────┐
//	      │  Directory    │    per-client command trees
//	      │  (registry)   │    resolution + structural ops
//	      └───────┬───────┘
//	              ↓
//	      ┌───────────────┐
//	      │   Commands    │    command.Command + admin built-ins
//	      └───────────────┘
//
// # Packages
//
// Domain:
//   - command: command records, fluent builder, invocations, hooks
//   - registry: registry tree, resolution, placeholders, directory
//   - dispatch: invocation pipeline on a bounded worker pool
//   - admin: built-in administration commands (disable, enable, prefix,
//     help, ping)
//   - input: shared wire format for inbound chat messages
//   - input/nats, input/websocket: invocation sources
//
// Infrastructure:
//   - natsclient: NATS connection management with circuit breaker
//   - service: service lifecycle, manager, base implementation
//   - metric: Prometheus metrics registry and exposition server
//   - health: health status reporting
//   - config: layered JSON/YAML configuration with env overrides
//   - errors: classified error handling
//
// Utilities:
//   - pkg/worker: bounded worker pools
//   - pkg/retry: retry policies with backoff
//   - pkg/security: shared security configuration
//   - pkg/tlsutil: TLS setup helpers
//   - pkg/timestamp: millisecond timestamp utilities
//   - testutil: in-memory transport and fixtures for tests
//
// # Binary
//
// cmd/cmdtree runs the daemon: it loads configuration, connects to NATS,
// builds the directory with admin commands installed into every root, and
// serves the enabled invocation sources alongside the metrics endpoint.
//
//	./bin/cmdtree -config configs/example.yaml
package cmdtree
