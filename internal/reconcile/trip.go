package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleet-sync/internal/models"
)

type TripAction int

const (
	TripUnchanged TripAction = iota
	TripOpened
	TripUpdated
	TripClosed
)

func (a TripAction) String() string {
	switch a {
	case TripOpened:
		return "opened"
	case TripUpdated:
		return "updated"
	case TripClosed:
		return "closed"
	default:
		return "unchanged"
	}
}

// LatestTrips picks, per vehicle, the qualifying trip with the latest
// StartDate. On an exact StartDate tie the trip seen first wins and the
// vehicle is listed in ties.
func LatestTrips(trips []*models.Trip, filter models.TripFilter) (latest map[string]*models.Trip, ties []string) {
	latest = make(map[string]*models.Trip)
	tied := make(map[string]bool)

	for _, t := range trips {
		if !filter.Qualifies(t) {
			continue
		}
		current, ok := latest[t.VehicleNo]
		switch {
		case !ok || t.StartDate.After(current.StartDate):
			latest[t.VehicleNo] = t
			delete(tied, t.VehicleNo)
		case t.StartDate.Equal(current.StartDate):
			tied[t.VehicleNo] = true
		}
	}

	for vehicleNo := range tied {
		ties = append(ties, vehicleNo)
	}
	return latest, ties
}

// BuildTripDetails derives the open projection for trip. The mobile number is
// always null here; phone numbers belong to the driver records.
func BuildTripDetails(trip *models.Trip) *models.TripDetails {
	identity := ParseDriverField(trip.StartDriver)
	return &models.TripDetails{
		ID: trip.ID,
		Driver: &models.TripDriver{
			ID:       identity.ID,
			Name:     identity.Name,
			MobileNo: nil,
		},
		Open: true,
	}
}

// PlanTripState decides what to write for vehicle given its latest qualifying
// trip, or nil when it has none. The returned details are only set for
// TripOpened and TripUpdated.
func PlanTripState(vehicle *models.Vehicle, trip *models.Trip) (TripAction, *models.TripDetails) {
	if trip == nil {
		if !vehicle.IsOpen() {
			return TripUnchanged, nil
		}
		return TripClosed, nil
	}

	candidate := BuildTripDetails(trip)
	if sameTripState(vehicle.TripDetails, candidate) {
		return TripUnchanged, nil
	}
	if vehicle.IsOpen() {
		return TripUpdated, candidate
	}
	return TripOpened, candidate
}

// sameTripState compares open, driver id and driver name only.
func sameTripState(current, candidate *models.TripDetails) bool {
	if current == nil {
		return false
	}
	if current.Open != candidate.Open {
		return false
	}

	var id, name string
	if current.Driver != nil {
		id, name = current.Driver.ID, current.Driver.Name
	}
	return id == candidate.Driver.ID && name == candidate.Driver.Name
}

type TripPass struct {
	trips  TripStore
	cloud  VehicleStore
	window time.Duration
	goods  string
	dryRun bool
	now    func() time.Time
	logger *zap.Logger
}

func NewTripPass(trips TripStore, cloud VehicleStore, window time.Duration, excludedGoods string, dryRun bool, logger *zap.Logger) *TripPass {
	return &TripPass{
		trips:  trips,
		cloud:  cloud,
		window: window,
		goods:  excludedGoods,
		dryRun: dryRun,
		now:    time.Now,
		logger: logger.With(zap.String("pass", string(PassTrips))),
	}
}

// Run rewrites tripDetails on every cloud vehicle. A failed write is logged
// and counted; the remaining vehicles are still processed.
func (p *TripPass) Run(ctx context.Context) (*TripReport, error) {
	start := time.Now()
	filter := models.NewTripFilter(p.now(), p.window, p.goods)
	p.logger.Info("Starting trip state reconciliation", zap.Time("since", filter.Since))

	trips, err := p.trips.FindQualifying(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load local trips: %w", err)
	}

	vehicles, err := p.cloud.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cloud vehicles: %w", err)
	}

	latest, ties := LatestTrips(trips, filter)
	for _, vehicleNo := range ties {
		p.logger.Warn("Several open trips share the latest start date, using the first one",
			zap.String("vehicle_no", vehicleNo),
			zap.Time("start_date", latest[vehicleNo].StartDate))
	}

	report := &TripReport{
		QualifyingTrips: len(trips),
		Vehicles:        len(vehicles),
	}

	for _, vehicle := range vehicles {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		action, details := PlanTripState(vehicle, latest[vehicle.VehicleNo])
		if action == TripUnchanged {
			report.Unchanged++
			continue
		}

		if !p.dryRun {
			if err := p.apply(ctx, vehicle, action, details); err != nil {
				report.Failed++
				p.logger.Error("Failed to update trip details",
					zap.String("vehicle_no", vehicle.VehicleNo),
					zap.Stringer("action", action),
					zap.Error(err))
				continue
			}
		}

		switch action {
		case TripOpened:
			report.Opened++
		case TripUpdated:
			report.Updated++
		case TripClosed:
			report.Closed++
		}
		p.logger.Debug("Trip details written",
			zap.String("vehicle_no", vehicle.VehicleNo),
			zap.Stringer("action", action))
	}

	p.logger.Info("Trip state reconciliation completed",
		zap.Int("qualifying_trips", report.QualifyingTrips),
		zap.Int("vehicles", report.Vehicles),
		zap.Int("opened", report.Opened),
		zap.Int("updated", report.Updated),
		zap.Int("closed", report.Closed),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
		zap.Bool("dry_run", p.dryRun),
		zap.Duration("duration", time.Since(start)))

	return report, nil
}

func (p *TripPass) apply(ctx context.Context, vehicle *models.Vehicle, action TripAction, details *models.TripDetails) error {
	if action == TripClosed {
		return p.cloud.CloseTrip(ctx, vehicle)
	}
	return p.cloud.SetTripDetails(ctx, vehicle, details)
}
