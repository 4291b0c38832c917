package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// Config holds the store connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect opens the tracking store and pings it. Unlike the event bus, the
// store is required: ingestion cannot succeed without it.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping %s: %w", cfg.Database, err)
	}

	return client, client.Database(cfg.Database), nil
}

// Indexer is a repository that owns indexes on its collection.
type Indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes of every collection. A failure is logged
// per collection and the rest still run; the joined error is returned so the
// caller decides whether it is fatal.
func EnsureIndexes(ctx context.Context, log zerolog.Logger, collections map[string]Indexer) error {
	var errs []error
	for name, repo := range collections {
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Str("collection", name).Msg("failed to ensure indexes")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
