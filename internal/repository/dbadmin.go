package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBAdminClient issues the administrative commands that create and destroy
// per-tenant databases and roles. It talks to the tenant database server over
// a maintenance connection whose role has CREATEDB/CREATEROLE.
//
// DDL statements cannot take bind parameters, so identifiers go through
// pgx.Identifier.Sanitize and string literals through quoteLiteral; no raw
// caller input is ever interpolated.
type DBAdminClient struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewDBAdminClient(ctx context.Context, adminURL string, logger *zap.Logger) (*DBAdminClient, error) {
	config, err := pgxpool.ParseConfig(adminURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse admin URL: %w", err)
	}

	// Administrative traffic is rare; keep the footprint minimal.
	config.MaxConns = 3
	config.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping admin connection: %w", err)
	}

	logger.Info("Database admin connection established")

	return &DBAdminClient{
		pool:   pool,
		logger: logger,
	}, nil
}

func (c *DBAdminClient) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// CreateDatabase creates an empty database owned by the maintenance role.
func (c *DBAdminClient) CreateDatabase(ctx context.Context, name string) error {
	query := fmt.Sprintf(`CREATE DATABASE %s`, pgx.Identifier{name}.Sanitize())

	if _, err := c.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}

	c.logger.Info("Tenant database created", zap.String("database", name))
	return nil
}

// CreateUser creates a login role with the given password. The role has no
// privileges until GrantDatabase scopes it to a single database.
func (c *DBAdminClient) CreateUser(ctx context.Context, user, password string) error {
	query := fmt.Sprintf(`CREATE ROLE %s LOGIN PASSWORD %s`,
		pgx.Identifier{user}.Sanitize(), quoteLiteral(password))

	if _, err := c.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user, err)
	}

	c.logger.Info("Tenant database user created", zap.String("user", user))
	return nil
}

// GrantDatabase scopes the user to exactly one database: connect access for
// PUBLIC is revoked, then all privileges granted to the tenant role alone.
func (c *DBAdminClient) GrantDatabase(ctx context.Context, name, user string) error {
	db := pgx.Identifier{name}.Sanitize()
	role := pgx.Identifier{user}.Sanitize()

	statements := []string{
		fmt.Sprintf(`REVOKE CONNECT ON DATABASE %s FROM PUBLIC`, db),
		fmt.Sprintf(`GRANT ALL PRIVILEGES ON DATABASE %s TO %s`, db, role),
		fmt.Sprintf(`ALTER DATABASE %s OWNER TO %s`, db, role),
	}

	for _, stmt := range statements {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to grant database %s to %s: %w", name, user, err)
		}
	}

	c.logger.Info("Tenant database granted", zap.String("database", name), zap.String("user", user))
	return nil
}

// DropDatabase drops the database, forcing out any remaining connections.
// Used only by provisioning rollback.
func (c *DBAdminClient) DropDatabase(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DROP DATABASE IF EXISTS %s WITH (FORCE)`, pgx.Identifier{name}.Sanitize())

	if _, err := c.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}

	c.logger.Info("Tenant database dropped", zap.String("database", name))
	return nil
}

func (c *DBAdminClient) DropUser(ctx context.Context, user string) error {
	query := fmt.Sprintf(`DROP ROLE IF EXISTS %s`, pgx.Identifier{user}.Sanitize())

	if _, err := c.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to drop user %s: %w", user, err)
	}

	c.logger.Info("Tenant database user dropped", zap.String("user", user))
	return nil
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
