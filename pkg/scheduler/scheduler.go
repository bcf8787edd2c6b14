package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs a job immediately and then on every tick until stopped.
// Runs never overlap: ticks that fire while the job is running are drained
// once it returns, so a slow run is followed by a full interval of rest.
type Scheduler struct {
	name     string
	job      Job
	interval time.Duration
	logger   *zap.Logger

	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
}

func New(name string, interval time.Duration, job Job, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		job:      job,
		interval: interval,
		logger:   logger.With(zap.String("job", name)),
		stopChan: make(chan struct{}),
	}
}

// Start launches the loop in a goroutine.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop cancels an in-flight run and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.logger.Info("Starting scheduler", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx, ticker.C)
}

func (s *Scheduler) run(ctx context.Context, ticks <-chan time.Time) {
	s.runOnce(ctx)
	drain(ticks)

	for {
		select {
		case <-ticks:
			s.runOnce(ctx)
			drain(ticks)
		case <-s.stopChan:
			s.logger.Info("Stopping scheduler")
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("Scheduled run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	s.logger.Debug("Scheduled run finished", zap.Duration("duration", time.Since(start)))
}

// drain discards a tick that became ready while the job was running.
func drain(ticks <-chan time.Time) {
	select {
	case <-ticks:
	default:
	}
}
