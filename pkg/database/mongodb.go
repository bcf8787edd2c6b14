package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"fleet-sync/internal/config"
)

const (
	connectTimeout    = 30 * time.Second
	disconnectTimeout = 10 * time.Second
)

// Connect opens a client for cfg.URI, verifies it with a ping and returns the
// configured database. There is no retry: a failure is returned as is.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(cfg.Database), nil
}

// Disconnect closes the client behind db.
func Disconnect(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	defer cancel()

	if err := db.Client().Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

// Health pings the database.
func Health(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.Client().Ping(ctx, nil)
}

// Pair holds the local and cloud connections of one sync run.
type Pair struct {
	Local  *mongo.Database
	Cloud  *mongo.Database
	logger *zap.Logger
}

// ConnectPair opens the local connection, then the cloud connection. If the
// cloud connection fails the local one is closed before returning.
func ConnectPair(ctx context.Context, local, cloud config.MongoConfig, logger *zap.Logger) (*Pair, error) {
	localDB, err := Connect(ctx, local)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	logger.Info("Connected to local store", zap.String("database", local.Database))

	cloudDB, err := Connect(ctx, cloud)
	if err != nil {
		if closeErr := Disconnect(context.Background(), localDB); closeErr != nil {
			logger.Warn("Failed to close local store", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("cloud store: %w", err)
	}
	logger.Info("Connected to cloud store", zap.String("database", cloud.Database))

	return &Pair{Local: localDB, Cloud: cloudDB, logger: logger}, nil
}

// Close disconnects both stores. Both are attempted even if the first fails.
func (p *Pair) Close(ctx context.Context) error {
	var errs []error
	if err := Disconnect(ctx, p.Local); err != nil {
		errs = append(errs, fmt.Errorf("local store: %w", err))
	}
	if err := Disconnect(ctx, p.Cloud); err != nil {
		errs = append(errs, fmt.Errorf("cloud store: %w", err))
	}
	if len(errs) == 0 {
		p.logger.Info("Disconnected from local and cloud stores")
	}
	return errors.Join(errs...)
}
