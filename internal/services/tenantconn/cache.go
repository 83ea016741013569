package tenantconn

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/metrics"
)

// Credentials identify one tenant database on the shared tenant DB server.
type Credentials struct {
	DBName   string
	User     string
	Password string
}

// PoolFactory builds a pooled handle from a DSN. Injectable so tests can
// exercise the cache without a live server.
type PoolFactory func(ctx context.Context, dsn string) (*pgxpool.Pool, error)

// DefaultPoolFactory creates a pgx pool sized for one tenant's request
// traffic and verifies connectivity before handing it out.
func DefaultPoolFactory(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tenant DSN: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping tenant database: %w", err)
	}

	return pool, nil
}

// ServerInfo locates the database server hosting all tenant databases.
type ServerInfo struct {
	Host    string
	Port    int
	SSLMode string
}

type entry struct {
	once sync.Once
	pool *pgxpool.Pool
	err  error
}

// Cache maps a tenant database name to a live pooled handle. A handle is
// constructed at most once per database name per process lifetime and never
// closed mid-process; there is no eviction. The tenant population is assumed
// small relative to process memory.
type Cache struct {
	server  ServerInfo
	factory PoolFactory
	logger  *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

func NewCache(server ServerInfo, factory PoolFactory, logger *zap.Logger) *Cache {
	if factory == nil {
		factory = DefaultPoolFactory
	}
	return &Cache{
		server:  server,
		factory: factory,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Get returns the cached handle for the database name, constructing it on
// first access. Concurrent first callers for the same name all receive the
// single handle built by whichever caller runs the constructor; a failed
// construction is forgotten so a later request can retry.
func (c *Cache) Get(ctx context.Context, creds Credentials) (*pgxpool.Pool, error) {
	c.mu.RLock()
	e, ok := c.entries[creds.DBName]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		e, ok = c.entries[creds.DBName]
		if !ok {
			e = &entry{}
			c.entries[creds.DBName] = e
		}
		c.mu.Unlock()
	}

	e.once.Do(func() {
		e.pool, e.err = c.factory(ctx, BuildDSN(c.server, creds))
		if e.err == nil {
			c.logger.Info("Tenant connection pool created", zap.String("database", creds.DBName))
			metrics.SetCachedTenantPools(float64(c.Size()))
		}
	})

	if e.err != nil {
		c.mu.Lock()
		if c.entries[creds.DBName] == e {
			delete(c.entries, creds.DBName)
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to open tenant database %s: %w", creds.DBName, e.err)
	}

	return e.pool, nil
}

// BuildDSN renders the connection string for one tenant database on the
// shared server.
func BuildDSN(server ServerInfo, creds Credentials) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(creds.User, creds.Password),
		Host:   fmt.Sprintf("%s:%d", server.Host, server.Port),
		Path:   "/" + creds.DBName,
	}
	q := u.Query()
	if server.SSLMode != "" {
		q.Set("sslmode", server.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Size returns the number of cached handles, counting entries still under
// construction.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close tears down every cached pool. Only called at process shutdown.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, e := range c.entries {
		if e.pool != nil {
			e.pool.Close()
		}
		delete(c.entries, name)
	}
	c.logger.Info("Tenant connection cache closed")
}
