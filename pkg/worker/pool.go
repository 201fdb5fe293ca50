// Package worker provides a bounded generic worker pool
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Pool processes items of type T on a fixed set of workers behind a
// bounded queue. Submission is non-blocking: when the queue is full the
// item is rejected with ErrQueueFull rather than stalling the caller,
// which makes the queue the daemon's backpressure boundary.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	wg       sync.WaitGroup

	// Guards lifecycle transitions and Submit against a closing channel.
	lifecycleMu sync.Mutex
	started     bool
	closed      bool // workChan closed, workers draining
	stopped     bool // workers confirmed gone

	stats counters
}

// counters aggregates the pool's statistics.
type counters struct {
	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewPool creates a pool of workers draining a queue of queueSize into
// processor. Non-positive sizes fall back to defaults. A nil processor is
// a programming error and panics.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error) *Pool[T] {
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	return &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
}

// Start launches the workers. The context is handed to every processor
// call; cancelling it makes workers exit after their current item.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Submit enqueues one item without blocking. A full queue drops the item
// and returns ErrQueueFull.
func (p *Pool[T]) Submit(item T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.closed || p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.workChan <- item:
		p.stats.submitted.Add(1)
		return nil
	default:
		p.stats.dropped.Add(1)
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for the workers to drain it, up to
// timeout. On timeout the workers are left running; ErrStopTimeout tells
// the caller they are stuck in a processor.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	// A retried Stop after a timeout must not close the channel twice.
	if !p.closed {
		close(p.workChan)
		p.closed = true
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.stopped = true
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns a snapshot of the pool's counters and queue depth.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.stats.submitted.Load(),
		Processed:  p.stats.processed.Load(),
		Failed:     p.stats.failed.Load(),
		Dropped:    p.stats.dropped.Load(),
	}
}

// PoolStats is a point-in-time snapshot of pool activity.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// worker drains the queue until it closes or the context is cancelled.
func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.workChan:
			if !ok {
				return
			}
			err := p.processor(ctx, item)
			p.stats.processed.Add(1)
			if err != nil {
				p.stats.failed.Add(1)
			}
		}
	}
}
