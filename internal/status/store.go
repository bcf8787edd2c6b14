package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fleet-sync/internal/reconcile"

	"github.com/redis/go-redis/v9"
)

const lastReportKey = "fleetsync:last_report"

// ErrNoReport is returned before the first run has been recorded.
var ErrNoReport = errors.New("no sync run recorded")

// Store keeps the report of the most recent run in Redis.
type Store struct {
	client *redis.Client
	key    string
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, key: lastReportKey}
}

func (s *Store) Save(ctx context.Context, report *reconcile.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) (*reconcile.Report, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	var report reconcile.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
