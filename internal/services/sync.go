package services

import (
	"context"
	"errors"

	"fleet-sync/internal/reconcile"
	"fleet-sync/pkg/lock"

	"go.uber.org/zap"
)

const runLockKey = "fleetsync:run"

var ErrSyncInProgress = errors.New("sync run already in progress")

type Runner interface {
	Run(ctx context.Context) (*reconcile.Report, error)
}

type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type ReportStore interface {
	Save(ctx context.Context, report *reconcile.Report) error
	Latest(ctx context.Context) (*reconcile.Report, error)
}

// SyncService runs the reconciliation under a cross-process lock and keeps
// the report of the last run.
type SyncService struct {
	runner Runner
	locker Locker
	store  ReportStore
	logger *zap.Logger
}

func NewSyncService(runner Runner, locker Locker, store ReportStore, logger *zap.Logger) *SyncService {
	return &SyncService{
		runner: runner,
		locker: locker,
		store:  store,
		logger: logger,
	}
}

// Trigger runs one sync. It returns ErrSyncInProgress when another run holds
// the lock. The report is stored even when the run fails.
func (s *SyncService) Trigger(ctx context.Context) (*reconcile.Report, error) {
	var report *reconcile.Report

	err := s.locker.WithLock(ctx, runLockKey, func(ctx context.Context) error {
		var runErr error
		report, runErr = s.runner.Run(ctx)
		if report != nil {
			if saveErr := s.store.Save(ctx, report); saveErr != nil {
				s.logger.Warn("Failed to store sync report", zap.Error(saveErr))
			}
		}
		return runErr
	})

	if errors.Is(err, lock.ErrNotObtained) {
		s.logger.Info("Sync run skipped, another run holds the lock")
		return nil, ErrSyncInProgress
	}
	return report, err
}

// Latest returns the report of the most recent run.
func (s *SyncService) Latest(ctx context.Context) (*reconcile.Report, error) {
	return s.store.Latest(ctx)
}
