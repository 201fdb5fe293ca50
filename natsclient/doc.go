// Package natsclient provides the NATS client used by the command daemon's
// transport layer, with circuit breaker protection, automatic reconnection,
// and reply-aware subscriptions.
//
// The natsclient package wraps the standard NATS Go client with reliability
// features: a circuit breaker that fails fast after repeated connection
// failures, exponential backoff between circuit rounds, health monitoring,
// and context propagation throughout. It carries inbound chat messages to
// the dispatch pipeline and command replies back out.
//
// # Core Features
//
// Circuit Breaker Pattern: Prevents cascading failures by failing fast after
// a threshold of consecutive failures (default: 5). The circuit opens to
// block further attempts, then allows a fresh attempt after an exponentially
// increasing backoff capped at one minute.
//
// Connection Lifecycle Management: Handles connection states automatically
// through the lifecycle: Disconnected → Connecting → Connected →
// Reconnecting → Connected. The client manages all transitions with
// configurable callbacks for state changes.
//
// Reply-Aware Subscriptions: Message handlers receive the sender's reply
// subject alongside the payload, so command sources can route replies back
// to the requester without extra correlation state.
//
// Queue Groups: QueueSubscribe joins a queue group so each inbound message
// is delivered to exactly one daemon instance, which is how command handling
// scales horizontally.
//
// # Basic Usage
//
// Creating and connecting to NATS:
//
//	client, err := natsclient.NewClient("nats://localhost:4222")
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	err = client.Connect(ctx)
//	if err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	// Publish a message
//	err = client.Publish(ctx, "cmdtree.replies.discord", []byte("Pong!"))
//
//	// Subscribe to inbound messages
//	err = client.Subscribe(ctx, "cmdtree.messages.>", func(msgCtx context.Context, data []byte, reply string) {
//	    // Handle message with context (30s timeout per message);
//	    // reply holds the sender's reply subject, empty if none.
//	    fmt.Printf("Received: %s (reply to %s)\n", string(data), reply)
//	})
//
// Sharing inbound load across daemon instances:
//
//	err = client.QueueSubscribe(ctx, "cmdtree.messages.>", "cmdtree-dispatch",
//	    func(msgCtx context.Context, data []byte, reply string) {
//	        // Exactly one group member receives each message.
//	    })
//
// # Advanced Configuration
//
// Creating client with options:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithMaxReconnects(-1),  // Infinite reconnects
//	    natsclient.WithReconnectWait(2*time.Second),
//	    natsclient.WithCircuitBreakerThreshold(10),
//	    natsclient.WithLogger(logger.With("component", "nats")),
//	    natsclient.WithDisconnectCallback(func(err error) {
//	        slog.Warn("NATS disconnected", "error", err)
//	    }),
//	    natsclient.WithReconnectCallback(func() {
//	        slog.Info("NATS reconnected")
//	    }),
//	)
//
// # Circuit Breaker Pattern
//
// The circuit breaker protects against cascading failures:
//
//	err := client.Connect(ctx)
//	if errors.Is(err, natsclient.ErrCircuitOpen) {
//	    // Too many recent failures; a retry is scheduled automatically
//	    // after the current backoff elapses.
//	}
//
// Each failed connection attempt is recorded. When failures in the current
// round reach the threshold, the circuit opens, the backoff doubles (capped
// by WithMaxBackoff), and a timer moves the circuit back to disconnected so
// the next attempt is allowed through. A successful connection resets the
// failure count and the backoff.
//
// # Health Monitoring
//
// While connected, a background monitor verifies the connection and its RTT
// at the configured interval (default: 10s), updating the reported status
// and firing the health change callback on transitions:
//
//	client.OnHealthChange(func(healthy bool) {
//	    slog.Info("NATS health changed", "healthy", healthy)
//	})
//
// # Metrics
//
// With WithMetrics, the client publishes connection status, circuit state,
// reconnect count, and RTT samples into the shared metrics registry:
//
//	registry := metric.NewMetricsRegistry()
//	client, err := natsclient.NewClient(url, natsclient.WithMetrics(registry))
//
// # Testing Support
//
// TestClient runs a real NATS server in a container for integration tests:
//
//	func TestSomething(t *testing.T) {
//	    tc := natsclient.NewTestClient(t)
//	    // tc.Client is connected to a throwaway server; cleanup is automatic.
//	}
//
// # Error Handling
//
// Connection-state errors are sentinel values shared with the errors
// package: ErrNotConnected, ErrCircuitOpen, ErrConnectionTimeout. All other
// failures are returned as classified errors carrying the component and
// operation that produced them.
package natsclient
