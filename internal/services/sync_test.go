package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-sync/internal/reconcile"
	"fleet-sync/internal/status"
	"fleet-sync/pkg/lock"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context) (*reconcile.Report, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*reconcile.Report)
	return report, args.Error(1)
}

func setupService(t *testing.T, runner Runner) (*SyncService, *lock.Locker) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	locker := lock.New(client, time.Minute, zap.NewNop())
	return NewSyncService(runner, locker, status.NewStore(client), zap.NewNop()), locker
}

func TestSyncService_TriggerStoresReport(t *testing.T) {
	runner := &MockRunner{}
	want := &reconcile.Report{Trips: &reconcile.TripReport{Opened: 3}}
	runner.On("Run", mock.Anything).Return(want, nil).Once()

	svc, _ := setupService(t, runner)

	report, err := svc.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, report)

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Trips.Opened)

	runner.AssertExpectations(t)
}

func TestSyncService_TriggerStoresFailedReport(t *testing.T) {
	runner := &MockRunner{}
	runErr := errors.New("vehicle pass: failed to load cloud vehicles")
	runner.On("Run", mock.Anything).Return(&reconcile.Report{Error: runErr.Error()}, runErr).Once()

	svc, _ := setupService(t, runner)

	_, err := svc.Trigger(context.Background())
	assert.ErrorIs(t, err, runErr)

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, latest.Succeeded())
}

func TestSyncService_TriggerWhileRunning(t *testing.T) {
	runner := &MockRunner{}
	svc, locker := setupService(t, runner)

	err := locker.WithLock(context.Background(), runLockKey, func(ctx context.Context) error {
		report, err := svc.Trigger(ctx)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, ErrSyncInProgress)
		return nil
	})
	require.NoError(t, err)

	runner.AssertNotCalled(t, "Run", mock.Anything)
}

func TestSyncService_LatestWithoutRuns(t *testing.T) {
	svc, _ := setupService(t, &MockRunner{})

	_, err := svc.Latest(context.Background())
	assert.ErrorIs(t, err, status.ErrNoReport)
}
