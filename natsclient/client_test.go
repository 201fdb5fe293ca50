package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOfflineClient(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	client, err := NewClient("nats://localhost:4222", opts...)
	require.NoError(t, err)
	return client
}

func TestNewClientDefaults(t *testing.T) {
	client := newOfflineClient(t)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, time.Second, client.Backoff())
	assert.Equal(t, -1, client.MaxReconnects())
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	client := newOfflineClient(t)

	for i := 0; i < 4; i++ {
		client.recordFailure()
	}
	assert.NotEqual(t, StatusCircuitOpen, client.Status(),
		"circuit must stay closed below the threshold")

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(5), client.Failures())
}

func TestCircuitBreakerReset(t *testing.T) {
	client := newOfflineClient(t)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, time.Second, client.Backoff())
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestCircuitBreakerBackoffDoublesAndCaps(t *testing.T) {
	client := newOfflineClient(t)

	openCircuit := func() {
		for i := 0; i < 5; i++ {
			client.recordFailure()
		}
	}

	openCircuit()
	assert.Equal(t, 2*time.Second, client.Backoff())

	openCircuit()
	assert.Equal(t, 4*time.Second, client.Backoff())

	// Many more rounds must saturate at the one minute default cap.
	for i := 0; i < 20; i++ {
		openCircuit()
	}
	assert.Equal(t, time.Minute, client.Backoff())
}

func TestConnectFailsFastWhileCircuitOpen(t *testing.T) {
	client := newOfflineClient(t)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	err := client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}

func TestIsHealthyOnlyWhenConnected(t *testing.T) {
	for status, want := range map[ConnectionStatus]bool{
		StatusDisconnected: false,
		StatusConnecting:   false,
		StatusConnected:    true,
		StatusReconnecting: false,
		StatusCircuitOpen:  false,
	} {
		client := newOfflineClient(t)
		client.setStatus(status)
		assert.Equal(t, want, client.IsHealthy(), "status %s", status)
	}
}

func TestWaitForConnection(t *testing.T) {
	t.Run("times out when never connected", func(t *testing.T) {
		client := newOfflineClient(t)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := client.WaitForConnection(ctx)
		assert.ErrorIs(t, err, ErrConnectionTimeout)
	})

	t.Run("returns immediately when already connected", func(t *testing.T) {
		client := newOfflineClient(t)
		client.setStatus(StatusConnected)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		start := time.Now()
		require.NoError(t, client.WaitForConnection(ctx))
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("returns once the connection comes up", func(t *testing.T) {
		client := newOfflineClient(t)
		go func() {
			time.Sleep(50 * time.Millisecond)
			client.setStatus(StatusConnected)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		require.NoError(t, client.WaitForConnection(ctx))
		assert.Equal(t, StatusConnected, client.Status())
	})
}

func TestOfflineOperationsReturnNotConnected(t *testing.T) {
	client, err := NewClient("nats://invalid-host:4222")
	require.NoError(t, err)
	ctx := context.Background()

	// There is no server behind the URL, so Connect fails.
	assert.Error(t, client.Connect(ctx))

	noop := func(_ context.Context, _ []byte, _ string) {}
	assert.ErrorIs(t, client.Publish(ctx, "cmdtree.messages.test", []byte("data")), ErrNotConnected)
	assert.ErrorIs(t, client.Subscribe(ctx, "cmdtree.messages.test", noop), ErrNotConnected)
	assert.ErrorIs(t, client.QueueSubscribe(ctx, "cmdtree.messages.test", "workers", noop), ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)

	// Close is a no-op for a client that never connected.
	assert.NoError(t, client.Close(ctx))
	assert.NoError(t, client.Close(ctx), "second Close must also be a no-op")
}

func TestConnectionOptionsReflectConfig(t *testing.T) {
	client := newOfflineClient(t,
		WithMaxReconnects(10),
		WithReconnectWait(5*time.Second),
		WithPingInterval(30*time.Second),
	)

	assert.NotNil(t, client.ConnectionOptions())
	assert.Equal(t, 10, client.MaxReconnects())
	assert.Equal(t, 5*time.Second, client.ReconnectWait())
	assert.Equal(t, 30*time.Second, client.PingInterval())
}

func TestOptionFallbacks(t *testing.T) {
	client := newOfflineClient(t,
		WithLogger(nil),
		WithCircuitBreakerThreshold(0),
		WithMaxBackoff(time.Millisecond),
	)

	assert.NotNil(t, client.logger)
	assert.Equal(t, int32(5), client.circuitThreshold)
	assert.Equal(t, time.Minute, client.maxBackoff)
}

func TestGetStatusSnapshot(t *testing.T) {
	client := newOfflineClient(t)

	for i := 0; i < 3; i++ {
		client.recordFailure()
	}

	status := client.GetStatus()
	require.NotNil(t, status)
	assert.Equal(t, int32(3), status.FailureCount)
	assert.Equal(t, StatusDisconnected, status.Status)
	assert.NotZero(t, status.LastFailureTime)

	client.resetCircuit()
	assert.Equal(t, int32(0), client.GetStatus().FailureCount)
	assert.Zero(t, client.GetStatus().LastFailureTime)
}

func TestConcurrentStateChanges(t *testing.T) {
	client := newOfflineClient(t)

	var wg sync.WaitGroup
	const iterations = 100

	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				fn()
			}
		}()
	}

	run(func() { client.setStatus(StatusConnecting) })
	run(func() { client.setStatus(StatusConnected) })
	run(func() { _ = client.Status() })
	run(func() { client.recordFailure() })
	run(func() { client.resetCircuit() })
	wg.Wait()

	// Whatever interleaving happened, the status must be a known value.
	assert.Contains(t, []ConnectionStatus{
		StatusDisconnected,
		StatusConnecting,
		StatusConnected,
		StatusReconnecting,
		StatusCircuitOpen,
	}, client.Status())
}
