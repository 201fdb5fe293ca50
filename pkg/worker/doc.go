// Package worker provides a generic, thread-safe worker pool with a
// bounded queue.
//
// # Overview
//
// The pool runs a fixed number of goroutines draining a bounded channel.
// The dispatcher uses it to execute command invocations: the queue is the
// daemon's backpressure boundary, so a full queue rejects work instead of
// stalling the transport that delivered it.
//
//   - Generic type support for type-safe work processing
//   - Bounded queue with non-blocking Submit
//   - Context-aware cancellation and graceful shutdown
//   - Always-on statistics via atomic counters
//
// # Usage
//
//	pool := worker.NewPool(
//	    5,     // workers
//	    100,   // queue holds 100 invocations
//	    func(ctx context.Context, inv *command.Invocation) error {
//	        log.Printf("Executing %s for %s", inv.Signature, inv.Author)
//	        return nil
//	    },
//	)
//
//	ctx := context.Background()
//	if err := pool.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(inv); err != nil {
//	    if errors.Is(err, worker.ErrQueueFull) {
//	        // Shed load; the drop is the backpressure signal
//	        log.Printf("Queue full, dropping invocation %s", inv.ID)
//	    }
//	}
//
// # Shutdown
//
// Stop closes the queue, lets the workers drain what is already enqueued,
// and waits up to the timeout. ErrStopTimeout means a worker is stuck in
// a processor call; per-item timeouts belong inside the processor, using
// the context Start handed it.
//
// # Thread Safety
//
// All public methods are safe for concurrent use. Start and Stop are
// serialized; Submit is serialized against Stop so it never sends on a
// closed channel; Stats reads atomics without locks. Stop is idempotent.
//
// # Error Handling
//
// The package uses plain sentinel errors rather than the repo's error
// classification: pool errors are either programming errors
// (ErrPoolNotStarted, ErrPoolAlreadyStarted, ErrNilProcessor) or
// resource-exhaustion signals (ErrQueueFull, ErrStopTimeout) that callers
// match with errors.Is. Processor errors are counted in Stats().Failed
// but never interpreted.
//
// # Limitations
//
// FIFO only, fixed worker count, no cancellation of queued items, no
// per-item timeout. These are deliberate: the dispatcher needs a
// predictable drain order and bounded resources, not a scheduler.
package worker
