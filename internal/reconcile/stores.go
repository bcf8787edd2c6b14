package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fleet-sync/internal/config"
	"fleet-sync/internal/models"
	"fleet-sync/internal/repository"
	"fleet-sync/pkg/database"
)

// ErrConnect marks a failure to open the local/cloud connection pair.
var ErrConnect = errors.New("failed to connect to stores")

type DriverStore interface {
	FindAll(ctx context.Context) ([]*models.Driver, error)
	FindByNameMarker(ctx context.Context, marker string) ([]*models.Driver, error)
	InsertMany(ctx context.Context, drivers []*models.Driver) error
	UpdateMobileNumbers(ctx context.Context, updates []repository.MobileUpdate) error
}

type VehicleStore interface {
	FindAll(ctx context.Context) ([]*models.Vehicle, error)
	FindOwned(ctx context.Context, field, value string) ([]*models.Vehicle, error)
	InsertMany(ctx context.Context, vehicles []*models.Vehicle) error
	CloseTrip(ctx context.Context, vehicle *models.Vehicle) error
	SetTripDetails(ctx context.Context, vehicle *models.Vehicle, details *models.TripDetails) error
}

type TripStore interface {
	FindQualifying(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error)
}

// Stores is everything a run reads from and writes to. It is built once per
// run and handed to each pass.
type Stores struct {
	LocalDrivers  DriverStore
	CloudDrivers  DriverStore
	LocalVehicles VehicleStore
	CloudVehicles VehicleStore
	LocalTrips    TripStore
}

// Session is an open local/cloud connection pair.
type Session interface {
	Stores() Stores
	Close(ctx context.Context) error
}

// Opener opens a fresh Session for a run.
type Opener func(ctx context.Context) (Session, error)

type mongoSession struct {
	pair   *database.Pair
	stores Stores
}

func (s *mongoSession) Stores() Stores { return s.stores }

func (s *mongoSession) Close(ctx context.Context) error { return s.pair.Close(ctx) }

// MongoOpener connects to the two MongoDB deployments named in cfg.
func MongoOpener(cfg *config.Config, logger *zap.Logger) Opener {
	return func(ctx context.Context) (Session, error) {
		pair, err := database.ConnectPair(ctx, cfg.Local, cfg.Cloud, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnect, err)
		}

		timeout := cfg.Sync.OperationTimeout
		cols := cfg.Collections
		local := logger.With(zap.String("side", "local"))
		cloud := logger.With(zap.String("side", "cloud"))
		return &mongoSession{
			pair: pair,
			stores: Stores{
				LocalDrivers:  repository.NewDriverRepository(pair.Local, cols.Drivers, timeout, local),
				CloudDrivers:  repository.NewDriverRepository(pair.Cloud, cols.Drivers, timeout, cloud),
				LocalVehicles: repository.NewVehicleRepository(pair.Local, cols.Vehicles, timeout, local),
				CloudVehicles: repository.NewVehicleRepository(pair.Cloud, cols.Vehicles, timeout, cloud),
				LocalTrips:    repository.NewTripRepository(pair.Local, cols.Trips, timeout, local),
			},
		}, nil
	}
}

// documentKey turns a decoded _id into a map key. The type is part of the
// key so an ObjectID never collides with a string of the same hex.
func documentKey(id interface{}) string {
	return fmt.Sprintf("%T:%v", id, id)
}
