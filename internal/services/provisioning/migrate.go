package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// FileMigrator applies the tenant schema from a directory of SQL migration
// files to a tenant database.
type FileMigrator struct {
	dir    string
	logger *zap.Logger
}

func NewFileMigrator(dir string, logger *zap.Logger) *FileMigrator {
	return &FileMigrator{
		dir:    dir,
		logger: logger,
	}
}

func (m *FileMigrator) Migrate(ctx context.Context, dsn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	migrator, err := migrate.New("file://"+m.dir, dsn)
	if err != nil {
		return fmt.Errorf("failed to open migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		if srcErr != nil {
			m.logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			m.logger.Warn("Failed to close migration database handle", zap.Error(dbErr))
		}
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply tenant schema: %w", err)
	}

	m.logger.Info("Tenant schema migrated", zap.String("source", m.dir))
	return nil
}
