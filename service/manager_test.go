package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cmdtree/health"
	"github.com/c360/cmdtree/metric"
)

// MockService provides a mock service for testing
type MockService struct {
	name      string
	status    Status
	healthy   bool
	startErr  error
	stopErr   error
	startedAt time.Time
	stoppedAt time.Time
}

func (m *MockService) Name() string { return m.name }

func (m *MockService) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if m.startErr != nil {
		return m.startErr
	}
	m.startedAt = time.Now()
	m.status = StatusRunning
	return nil
}

func (m *MockService) Stop(_ time.Duration) error {
	if m.stopErr != nil {
		return m.stopErr
	}
	m.stoppedAt = time.Now()
	m.status = StatusStopped
	return nil
}

func (m *MockService) Status() Status  { return m.status }
func (m *MockService) IsHealthy() bool { return m.healthy }

func (m *MockService) GetStatus() Info {
	return Info{
		Name:   m.name,
		Status: m.status,
	}
}

func (m *MockService) RegisterMetrics(_ metric.MetricsRegistrar) error { return nil }

func (m *MockService) Health() health.Status {
	if !m.healthy {
		return health.NewUnhealthy(m.name, "Mock service unhealthy")
	}
	switch m.status {
	case StatusRunning:
		return health.NewHealthy(m.name, "Mock service running")
	case StatusStarting:
		return health.NewDegraded(m.name, "Mock service starting")
	case StatusStopping:
		return health.NewDegraded(m.name, "Mock service stopping")
	default:
		return health.NewUnhealthy(m.name, "Mock service stopped")
	}
}

func TestManager_Add(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.Add(&MockService{name: "alpha"}))
	require.NoError(t, m.Add(&MockService{name: "beta"}))

	// Duplicate names are rejected
	err := m.Add(&MockService{name: "alpha"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	// Nil and unnamed services are rejected
	assert.Error(t, m.Add(nil))
	assert.Error(t, m.Add(&MockService{name: ""}))

	assert.Equal(t, []string{"alpha", "beta"}, m.Services())

	svc, ok := m.Get("alpha")
	assert.True(t, ok)
	assert.Equal(t, "alpha", svc.Name())

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManager_StartAll_StopAll(t *testing.T) {
	m := NewManager(nil)

	first := &MockService{name: "first", healthy: true}
	second := &MockService{name: "second", healthy: true}
	require.NoError(t, m.Add(first))
	require.NoError(t, m.Add(second))

	ctx := context.Background()
	require.NoError(t, m.StartAll(ctx))
	assert.Equal(t, StatusRunning, first.Status())
	assert.Equal(t, StatusRunning, second.Status())
	assert.False(t, first.startedAt.After(second.startedAt), "first should start before second")

	require.NoError(t, m.StopAll(time.Second))
	assert.Equal(t, StatusStopped, first.Status())
	assert.Equal(t, StatusStopped, second.Status())
	assert.False(t, second.stoppedAt.After(first.stoppedAt), "second should stop before first")

	// StopAll clears the registry
	assert.Empty(t, m.Services())
}

func TestManager_StartAll_FailureAborts(t *testing.T) {
	m := NewManager(nil)

	good := &MockService{name: "good"}
	bad := &MockService{name: "bad", startErr: errors.New("boom")}
	later := &MockService{name: "later"}
	require.NoError(t, m.Add(good))
	require.NoError(t, m.Add(bad))
	require.NoError(t, m.Add(later))

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")

	// Services after the failure were never started
	assert.Equal(t, StatusRunning, good.Status())
	assert.Equal(t, StatusStopped, later.Status())
	assert.True(t, later.startedAt.IsZero())
}

func TestManager_StopAll_CollectsErrors(t *testing.T) {
	m := NewManager(nil)

	ok := &MockService{name: "ok"}
	failing := &MockService{name: "failing", stopErr: errors.New("stuck")}
	require.NoError(t, m.Add(ok))
	require.NoError(t, m.Add(failing))

	require.NoError(t, m.StartAll(context.Background()))

	err := m.StopAll(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")

	// The healthy service was still stopped
	assert.Equal(t, StatusStopped, ok.Status())
}

func TestManager_HealthReporting(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.Add(&MockService{name: "up", status: StatusRunning, healthy: true}))
	require.NoError(t, m.Add(&MockService{name: "down", status: StatusRunning, healthy: false}))

	assert.Equal(t, []string{"up"}, m.HealthyServices())
	assert.Equal(t, []string{"down"}, m.UnhealthyServices())

	// One unhealthy service makes the aggregate unhealthy
	agg := m.Health()
	assert.False(t, agg.Healthy)
	assert.Equal(t, "services", agg.Component)

	statuses := m.Statuses()
	assert.Len(t, statuses, 2)
	assert.Equal(t, StatusRunning, statuses["up"].Status)
}

func TestManager_HealthAllHealthy(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.Add(&MockService{name: "a", status: StatusRunning, healthy: true}))
	require.NoError(t, m.Add(&MockService{name: "b", status: StatusRunning, healthy: true}))

	agg := m.Health()
	assert.True(t, agg.Healthy)
	assert.Equal(t, "healthy", agg.Status)
}
