package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolNilProcessorPanics(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[item](5, 100, nil)
	})
}

func TestSubmitBeforeStart(t *testing.T) {
	pool := NewPool(2, 10, func(context.Context, item) error { return nil })

	err := pool.Submit(item{signature: "?ping"})
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestDoubleStart(t *testing.T) {
	pool := startedPool(t, 2, 10, func(context.Context, item) error { return nil })

	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
}

func TestSubmitAfterStop(t *testing.T) {
	pool := NewPool(2, 10, func(context.Context, item) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(time.Second))

	err := pool.Submit(item{signature: "?ping"})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestStopIdempotent(t *testing.T) {
	pool := NewPool(2, 10, func(context.Context, item) error { return nil })

	assert.NoError(t, pool.Stop(time.Second), "stop before start is a no-op")

	require.NoError(t, pool.Start(context.Background()))
	assert.NoError(t, pool.Stop(time.Second))
	assert.NoError(t, pool.Stop(time.Second))
}

func TestSubmitQueueFull(t *testing.T) {
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })

	// One worker blocked on the gate, queue of one.
	pool := startedPool(t, 1, 1, func(context.Context, item) error {
		<-gate
		return nil
	})

	// First item occupies the worker, second fills the queue.
	require.NoError(t, pool.Submit(item{signature: "?go"}))
	require.Eventually(t, func() bool {
		return pool.Stats().QueueDepth == 0
	}, time.Second, 5*time.Millisecond, "worker should pick up the first item")
	require.NoError(t, pool.Submit(item{signature: "?go"}))

	err := pool.Submit(item{signature: "?go"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), pool.Stats().Dropped)
}

func TestStopTimeoutWhenWorkerStuck(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool(1, 4, func(context.Context, item) error {
		<-release
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(item{signature: "?go"}))

	err := pool.Stop(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrStopTimeout)

	// Unstick the worker so the test does not leak the goroutine.
	close(release)
	assert.NoError(t, pool.Stop(time.Second))
}