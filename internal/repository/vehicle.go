package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"fleet-sync/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var ErrVehicleNotFound = errors.New("vehicle not found")

type VehicleRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	logger     *zap.Logger
}

func NewVehicleRepository(db *mongo.Database, collection string, timeout time.Duration, logger *zap.Logger) *VehicleRepository {
	return &VehicleRepository{
		collection: db.Collection(collection),
		timeout:    timeout,
		logger:     logger.With(zap.String("collection", collection)),
	}
}

func (r *VehicleRepository) FindAll(ctx context.Context) ([]*models.Vehicle, error) {
	return r.find(ctx, bson.M{})
}

// FindOwned loads the vehicles whose field equals value, ignoring case.
func (r *VehicleRepository) FindOwned(ctx context.Context, field, value string) ([]*models.Vehicle, error) {
	return r.find(ctx, ownedFilter(field, value))
}

func ownedFilter(field, value string) bson.M {
	return bson.M{
		field: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(value) + "$", Options: "i"},
	}
}

func (r *VehicleRepository) find(ctx context.Context, filter bson.M) ([]*models.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "VehicleNo", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	vehicles, err := decodeEach[models.Vehicle](ctx, cursor, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read vehicles: %w", err)
	}
	return vehicles, nil
}

// InsertMany inserts the vehicles as read, with a single bulk insert.
func (r *VehicleRepository) InsertMany(ctx context.Context, vehicles []*models.Vehicle) error {
	if len(vehicles) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	docs := make([]interface{}, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Doc == nil {
			return fmt.Errorf("vehicle %s has no source document", v.VehicleNo)
		}
		docs = append(docs, v.Doc)
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert vehicles: %w", err)
	}
	return nil
}

// CloseTrip sets tripDetails.open to false and leaves the rest of the
// projection untouched.
func (r *VehicleRepository) CloseTrip(ctx context.Context, vehicle *models.Vehicle) error {
	return r.updateOne(ctx, vehicle, closeTripUpdate())
}

// SetTripDetails replaces the whole tripDetails projection.
func (r *VehicleRepository) SetTripDetails(ctx context.Context, vehicle *models.Vehicle, details *models.TripDetails) error {
	return r.updateOne(ctx, vehicle, tripDetailsUpdate(details))
}

func closeTripUpdate() bson.M {
	return bson.M{"$set": bson.M{"tripDetails.open": false}}
}

func tripDetailsUpdate(details *models.TripDetails) bson.M {
	return bson.M{"$set": bson.M{"tripDetails": details}}
}

func (r *VehicleRepository) updateOne(ctx context.Context, vehicle *models.Vehicle, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": vehicle.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update vehicle %s: %w", vehicle.VehicleNo, err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrVehicleNotFound, vehicle.VehicleNo)
	}

	return nil
}
