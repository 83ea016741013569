package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Database wraps the pooled connection to the master registry store. Tenant
// databases are not reached through this pool; they get their own pools from
// the tenant connection cache.
type Database struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewDatabase(databaseURL string, logger *zap.Logger) (*Database, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry database URL: %w", err)
	}

	// The registry sees one lookup per request plus provisioning writes,
	// so it needs far fewer connections than the tenant pools.
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping registry database: %w", err)
	}

	logger.Info("Registry database connection established")

	return &Database{
		pool:   pool,
		logger: logger,
	}, nil
}

func (db *Database) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
		db.logger.Info("Registry database connection closed")
	}
}

func (db *Database) HealthCheck(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
