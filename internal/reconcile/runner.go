package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleet-sync/internal/config"
)

type Pass string

const (
	PassDrivers  Pass = "drivers"
	PassVehicles Pass = "vehicles"
	PassTrips    Pass = "trips"
)

// AllPasses lists the passes in the order a run executes them.
var AllPasses = []Pass{PassDrivers, PassVehicles, PassTrips}

// ParsePasses reads a comma separated pass list. An empty list selects all
// passes.
func ParsePasses(s string) ([]Pass, error) {
	if strings.TrimSpace(s) == "" {
		return AllPasses, nil
	}

	var passes []Pass
	for _, name := range strings.Split(s, ",") {
		p := Pass(strings.ToLower(strings.TrimSpace(name)))
		switch p {
		case PassDrivers, PassVehicles, PassTrips:
			passes = append(passes, p)
		default:
			return nil, fmt.Errorf("%w: unknown pass %q", config.ErrInvalidConfig, name)
		}
	}
	return passes, nil
}

// Runner executes the selected passes over one freshly opened session.
type Runner struct {
	open   Opener
	cfg    config.SyncConfig
	passes map[Pass]bool
	now    func() time.Time
	logger *zap.Logger
}

func NewRunner(open Opener, cfg config.SyncConfig, passes []Pass, logger *zap.Logger) *Runner {
	if len(passes) == 0 {
		passes = AllPasses
	}
	selected := make(map[Pass]bool, len(passes))
	for _, p := range passes {
		selected[p] = true
	}

	return &Runner{
		open:   open,
		cfg:    cfg,
		passes: selected,
		now:    time.Now,
		logger: logger,
	}
}

// Run opens the session, runs drivers, vehicles and trips in that order and
// closes the session on every path. The first pass error aborts the run; the
// report returned alongside it holds the passes that completed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: r.now(), DryRun: r.cfg.DryRun}
	logger := r.logger.With(zap.String("run_id", report.RunID))

	session, err := r.open(ctx)
	if err != nil {
		report.finish(r.now(), err)
		logger.Error("Sync run aborted", zap.Error(err))
		return report, err
	}
	defer func() {
		if closeErr := session.Close(context.Background()); closeErr != nil {
			logger.Warn("Failed to close stores", zap.Error(closeErr))
		}
	}()

	err = r.runPasses(ctx, session.Stores(), report, logger)
	report.finish(r.now(), err)
	if err != nil {
		logger.Error("Sync run failed", zap.Error(err), zap.Duration("duration", report.Duration()))
		return report, err
	}

	logger.Info("Sync run completed", zap.Duration("duration", report.Duration()))
	return report, nil
}

func (r *Runner) runPasses(ctx context.Context, stores Stores, report *Report, logger *zap.Logger) error {
	if r.passes[PassDrivers] {
		pass := NewDriverPass(stores.LocalDrivers, stores.CloudDrivers, r.cfg.DriverNameMarker, r.cfg.DryRun, logger)
		res, err := pass.Run(ctx)
		report.Drivers = res
		if err != nil {
			return fmt.Errorf("driver pass: %w", err)
		}
	}

	if r.passes[PassVehicles] {
		pass := NewVehiclePass(stores.LocalVehicles, stores.CloudVehicles, r.cfg.VehicleOwnedField, r.cfg.VehicleOwnedValue, r.cfg.DryRun, logger)
		res, err := pass.Run(ctx)
		report.Vehicles = res
		if err != nil {
			return fmt.Errorf("vehicle pass: %w", err)
		}
	}

	if r.passes[PassTrips] {
		pass := NewTripPass(stores.LocalTrips, stores.CloudVehicles, r.cfg.TripWindow, r.cfg.ExcludedGoods, r.cfg.DryRun, logger)
		pass.now = r.now
		res, err := pass.Run(ctx)
		report.Trips = res
		if err != nil {
			return fmt.Errorf("trip pass: %w", err)
		}
	}

	return nil
}
