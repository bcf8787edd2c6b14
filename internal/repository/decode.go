package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// decodeEach decodes the cursor one document at a time. A document that
// does not decode is logged with its _id and skipped.
func decodeEach[T any](ctx context.Context, cursor *mongo.Cursor, logger *zap.Logger) ([]*T, error) {
	var (
		items   []*T
		skipped int
	)

	for cursor.Next(ctx) {
		item := new(T)
		if err := cursor.Decode(item); err != nil {
			skipped++
			logger.Warn("Skipping malformed document", append(documentFields(cursor.Current), zap.Error(err))...)
			continue
		}
		items = append(items, item)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor failed: %w", err)
	}

	if skipped > 0 {
		logger.Warn("Skipped malformed documents",
			zap.Int("skipped", skipped),
			zap.Int("decoded", len(items)),
		)
	}
	return items, nil
}

// documentFields names a document in logs by its _id and, for vehicles and
// trips, its VehicleNo.
func documentFields(doc bson.Raw) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if id, err := doc.LookupErr("_id"); err == nil {
		fields = append(fields, zap.String("id", id.String()))
	}
	if no, ok := doc.Lookup("VehicleNo").StringValueOK(); ok {
		fields = append(fields, zap.String("vehicleNo", no))
	}
	return fields
}
