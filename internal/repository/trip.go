package repository

import (
	"context"
	"fmt"
	"time"

	"fleet-sync/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type TripRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	logger     *zap.Logger
}

func NewTripRepository(db *mongo.Database, collection string, timeout time.Duration, logger *zap.Logger) *TripRepository {
	return &TripRepository{
		collection: db.Collection(collection),
		timeout:    timeout,
		logger:     logger.With(zap.String("collection", collection)),
	}
}

// FindQualifying loads the open trips matching filter, newest StartDate first.
// A null or missing EndDate / UnloadingDate both count as "not set".
func (r *TripRepository) FindQualifying(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "StartDate", Value: -1}})
	cursor, err := r.collection.Find(ctx, qualifyingTripsFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer cursor.Close(ctx)

	trips, err := decodeEach[models.Trip](ctx, cursor, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read trips: %w", err)
	}
	return trips, nil
}

// qualifyingTripsFilter matches null and missing dates alike: MongoDB's
// equality with null selects both.
func qualifyingTripsFilter(filter models.TripFilter) bson.M {
	query := bson.M{
		"TallyLoadDetail.UnloadingDate": nil,
		"EndDate":                       nil,
		"StartDate":                     bson.M{"$gte": filter.Since},
	}
	if filter.ExcludedGoods != "" {
		query["TallyLoadDetail.Goods"] = bson.M{"$ne": filter.ExcludedGoods}
	}
	return query
}
