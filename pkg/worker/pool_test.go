package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// item stands in for the dispatcher's invocations.
type item struct {
	signature string
	fail      bool
}

func startedPool(t *testing.T, workers, queueSize int, processor func(context.Context, item) error) *Pool[item] {
	t.Helper()
	pool := NewPool(workers, queueSize, processor)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(2 * time.Second) })
	return pool
}

func TestNewPoolDefaults(t *testing.T) {
	noop := func(context.Context, item) error { return nil }

	pool := NewPool(5, 100, noop)
	assert.Equal(t, 5, pool.workers)
	assert.Equal(t, 100, pool.queueSize)

	pool = NewPool(0, 0, noop)
	assert.Equal(t, 10, pool.workers)
	assert.Equal(t, 1000, pool.queueSize)
}

func TestPoolProcessesSubmittedItems(t *testing.T) {
	var processed atomic.Int64
	done := make(chan struct{}, 16)

	pool := startedPool(t, 3, 16, func(_ context.Context, it item) error {
		processed.Add(1)
		done <- struct{}{}
		return nil
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(item{signature: "?ping"}))
	}
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for items to be processed")
		}
	}

	assert.Equal(t, int64(10), processed.Load())
	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestPoolCountsProcessorFailures(t *testing.T) {
	done := make(chan struct{}, 4)
	pool := startedPool(t, 1, 4, func(_ context.Context, it item) error {
		defer func() { done <- struct{}{} }()
		if it.fail {
			return assert.AnError
		}
		return nil
	})

	require.NoError(t, pool.Submit(item{signature: "?go"}))
	require.NoError(t, pool.Submit(item{signature: "?go", fail: true}))
	<-done
	<-done

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestPoolStopDrainsQueue(t *testing.T) {
	var processed atomic.Int64
	gate := make(chan struct{})

	pool := NewPool(1, 16, func(_ context.Context, _ item) error {
		<-gate
		processed.Add(1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(item{signature: "?ping"}))
	}
	close(gate)

	require.NoError(t, pool.Stop(2*time.Second))
	assert.Equal(t, int64(5), processed.Load(),
		"items enqueued before Stop must still be processed")
}

func TestPoolStatsSnapshot(t *testing.T) {
	pool := NewPool(2, 8, func(context.Context, item) error { return nil })

	stats := pool.Stats()
	assert.Equal(t, 2, stats.Workers)
	assert.Equal(t, 8, stats.QueueSize)
	assert.Equal(t, 0, stats.QueueDepth)
	assert.Zero(t, stats.Submitted)
}

func TestPoolConcurrentSubmit(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 50

	var processed atomic.Int64
	all := make(chan struct{}, goroutines*perGoroutine)
	pool := startedPool(t, 4, goroutines*perGoroutine, func(context.Context, item) error {
		processed.Add(1)
		all <- struct{}{}
		return nil
	})

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				assert.NoError(t, pool.Submit(item{signature: "?go"}))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < goroutines*perGoroutine; i++ {
		select {
		case <-all:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out draining the pool")
		}
	}
	assert.Equal(t, int64(goroutines*perGoroutine), processed.Load())
}

func TestPoolContextCancellationStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	pool := NewPool(1, 4, func(ctx context.Context, _ item) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Submit(item{signature: "?ping"}))
	<-started

	cancel()
	assert.NoError(t, pool.Stop(2*time.Second),
		"cancelled workers must exit within the stop timeout")
}
