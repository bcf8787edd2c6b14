package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	var runs atomic.Int32
	s := New("sync", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, zap.NewNop())

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	stopped := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool

	s := New("sync", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}, zap.NewNop())

	s.Start()
	<-started
	s.Stop()

	assert.True(t, cancelled.Load())
	// a second Stop is a no-op
	s.Stop()
}

func TestScheduler_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	done := make(chan struct{})

	s := New("sync", time.Hour, func(ctx context.Context) error {
		defer close(done)
		return errors.New("cloud store unreachable")
	}, zap.New(core))

	s.Start()
	<-done
	s.Stop()

	entries := logs.FilterMessage("Scheduled run failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "sync", entries[0].ContextMap()["job"])
	}
}

func TestScheduler_DropsTicksDuringRun(t *testing.T) {
	ticks := make(chan time.Time, 1)
	var runs atomic.Int32

	s := New("sync", time.Hour, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			// a tick lands while the first run is still busy
			ticks <- time.Now()
		}
		return nil
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		s.run(ctx, ticks)
	}()

	assert.Eventually(t, func() bool { return runs.Load() == 1 && len(ticks) == 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	ticks <- time.Now()
	assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)

	s.Stop()
	<-exited
}
