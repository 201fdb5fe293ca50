package worker

import "errors"

// Pool lifecycle and submission errors.
var (
	// ErrPoolNotStarted means Submit was called before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolStopped means Submit was called after Stop completed.
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrPoolAlreadyStarted means Start was called twice.
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrQueueFull is the backpressure signal: the queue is at capacity
	// and the item was dropped.
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrNilProcessor marks a nil processor function at construction.
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrStopTimeout means the workers did not drain within the Stop
	// timeout and are presumed stuck in a processor call.
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)
