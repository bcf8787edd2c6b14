package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"fleet-sync/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MobileUpdate replaces the MobileNo value of the driver with the given _id.
// MobileNo is written exactly as it was read from the other side.
type MobileUpdate struct {
	DriverID interface{}
	MobileNo bson.RawValue
}

type DriverRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
	logger     *zap.Logger
}

func NewDriverRepository(db *mongo.Database, collection string, timeout time.Duration, logger *zap.Logger) *DriverRepository {
	return &DriverRepository{
		collection: db.Collection(collection),
		timeout:    timeout,
		logger:     logger.With(zap.String("collection", collection)),
	}
}

// FindAll loads every driver in the collection.
func (r *DriverRepository) FindAll(ctx context.Context) ([]*models.Driver, error) {
	return r.find(ctx, bson.M{})
}

// FindByNameMarker loads the drivers whose Name contains marker, ignoring case.
func (r *DriverRepository) FindByNameMarker(ctx context.Context, marker string) ([]*models.Driver, error) {
	return r.find(ctx, nameMarkerFilter(marker))
}

func nameMarkerFilter(marker string) bson.M {
	return bson.M{
		"Name": primitive.Regex{Pattern: regexp.QuoteMeta(marker), Options: "i"},
	}
}

func (r *DriverRepository) find(ctx context.Context, filter bson.M) ([]*models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer cursor.Close(ctx)

	drivers, err := decodeEach[models.Driver](ctx, cursor, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read drivers: %w", err)
	}
	return drivers, nil
}

// InsertMany inserts the drivers as read, with a single bulk insert.
func (r *DriverRepository) InsertMany(ctx context.Context, drivers []*models.Driver) error {
	if len(drivers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	docs := make([]interface{}, 0, len(drivers))
	for _, d := range drivers {
		if d.Doc == nil {
			return fmt.Errorf("driver %v has no source document", d.ID)
		}
		docs = append(docs, d.Doc)
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert drivers: %w", err)
	}
	return nil
}

// UpdateMobileNumbers sets MobileNo on each listed driver with one bulk write.
func (r *DriverRepository) UpdateMobileNumbers(ctx context.Context, updates []MobileUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	operations := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		operations = append(operations, mobileUpdateModel(u))
	}

	if _, err := r.collection.BulkWrite(ctx, operations); err != nil {
		return fmt.Errorf("bulk mobile update failed: %w", err)
	}
	return nil
}

func mobileUpdateModel(u MobileUpdate) *mongo.UpdateOneModel {
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"_id": u.DriverID}).
		SetUpdate(bson.M{"$set": bson.M{"MobileNo": u.MobileNo}}).
		SetUpsert(false)
}
