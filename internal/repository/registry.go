package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/models"
)

// ErrTenantNotFound is returned when no registry record matches the supplied
// identifier.
var ErrTenantNotFound = errors.New("tenant not found")

// TenantRegistry is the store for the master records shared by all tenants:
// tenants, service plans, plan assignments and module entitlements.
type TenantRegistry struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTenantRegistry(db *pgxpool.Pool, logger *zap.Logger) *TenantRegistry {
	return &TenantRegistry{
		db:     db,
		logger: logger,
	}
}

func (r *TenantRegistry) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (id, restaurant_id, name, email, db_name, db_user, db_password, use_redis, status, pos_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	row := r.db.QueryRow(ctx, query,
		tenant.ID, tenant.RestaurantID, tenant.Name, tenant.Email,
		tenant.DBName, tenant.DBUser, tenant.DBPassword,
		tenant.UseRedis, tenant.Status, tenant.POSType)

	if err := row.Scan(&tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
		r.logger.Error("Failed to create tenant record", zap.Error(err), zap.String("email", tenant.Email))
		return fmt.Errorf("failed to create tenant record: %w", err)
	}

	r.logger.Info("Tenant record created",
		zap.String("id", tenant.ID.String()),
		zap.Int64("restaurant_id", tenant.RestaurantID))
	return nil
}

func (r *TenantRegistry) GetByRestaurantID(ctx context.Context, restaurantID int64) (*models.Tenant, error) {
	query := `
		SELECT id, restaurant_id, name, email, db_name, db_user, db_password, use_redis, status, pos_type, created_at, updated_at
		FROM tenants WHERE restaurant_id = $1`

	return r.scanTenant(r.db.QueryRow(ctx, query, restaurantID))
}

func (r *TenantRegistry) GetByEmail(ctx context.Context, email string) (*models.Tenant, error) {
	query := `
		SELECT id, restaurant_id, name, email, db_name, db_user, db_password, use_redis, status, pos_type, created_at, updated_at
		FROM tenants WHERE email = $1`

	return r.scanTenant(r.db.QueryRow(ctx, query, email))
}

func (r *TenantRegistry) scanTenant(row pgx.Row) (*models.Tenant, error) {
	var tenant models.Tenant
	err := row.Scan(
		&tenant.ID, &tenant.RestaurantID, &tenant.Name, &tenant.Email,
		&tenant.DBName, &tenant.DBUser, &tenant.DBPassword,
		&tenant.UseRedis, &tenant.Status, &tenant.POSType,
		&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// RestaurantIDExists reports whether a tenant already holds the given
// tenant-facing identifier. Used by the provisioning redraw loop.
func (r *TenantRegistry) RestaurantIDExists(ctx context.Context, restaurantID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM tenants WHERE restaurant_id = $1)`, restaurantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check restaurant id: %w", err)
	}
	return exists, nil
}

// DeleteTenant removes a tenant row along with its assignments and module
// rows. Only used as provisioning-failure rollback.
func (r *TenantRegistry) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tenant_modules WHERE tenant_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete tenant modules: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM plan_assignments WHERE tenant_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete plan assignments: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTenantNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	r.logger.Info("Tenant record deleted", zap.String("id", id.String()))
	return nil
}

func (r *TenantRegistry) GetPlan(ctx context.Context, id uuid.UUID) (*models.ServicePlan, error) {
	query := `SELECT id, name, modules, price_monthly, active, created_at, updated_at FROM service_plans WHERE id = $1`

	var plan models.ServicePlan
	row := r.db.QueryRow(ctx, query, id)
	err := row.Scan(&plan.ID, &plan.Name, &plan.Modules, &plan.PriceMonthly, &plan.Active, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("plan not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

// AssignPlan binds the tenant to a plan in one transaction: any live
// assignment is superseded, the new assignment inserted, and the tenant's
// module rows replaced with the plan's module list.
func (r *TenantRegistry) AssignPlan(ctx context.Context, tenantID uuid.UUID, plan *models.ServicePlan, status models.AssignmentStatus, renewsAt time.Time) (*models.PlanAssignment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin plan assignment: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE plan_assignments SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND status IN ('trial', 'active', 'grace')`,
		models.AssignmentStatusSuperseded, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede previous assignment: %w", err)
	}

	assignment := &models.PlanAssignment{
		ID:       uuid.New(),
		TenantID: tenantID,
		PlanID:   plan.ID,
		Status:   status,
		StartsAt: time.Now(),
		RenewsAt: renewsAt,
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO plan_assignments (id, tenant_id, plan_id, status, starts_at, renews_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		assignment.ID, assignment.TenantID, assignment.PlanID,
		assignment.Status, assignment.StartsAt, assignment.RenewsAt)
	if err := row.Scan(&assignment.CreatedAt, &assignment.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert plan assignment: %w", err)
	}

	// Replace the module set rather than merging it.
	if _, err := tx.Exec(ctx, `DELETE FROM tenant_modules WHERE tenant_id = $1`, tenantID); err != nil {
		return nil, fmt.Errorf("failed to clear tenant modules: %w", err)
	}
	for _, key := range plan.Modules {
		_, err := tx.Exec(ctx, `
			INSERT INTO tenant_modules (tenant_id, module_key, status)
			VALUES ($1, $2, $3)`,
			tenantID, key, models.ModuleStatusActive)
		if err != nil {
			return nil, fmt.Errorf("failed to insert tenant module %s: %w", key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit plan assignment: %w", err)
	}

	r.logger.Info("Plan assigned",
		zap.String("tenant_id", tenantID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.String("status", string(status)))
	return assignment, nil
}

// ActiveModules returns the tenant's active module keys in insertion order.
func (r *TenantRegistry) ActiveModules(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT module_key FROM tenant_modules
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at, module_key`,
		tenantID, models.ModuleStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant modules: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan module key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return keys, nil
}

// UpdateTenantPlanMeta applies the admin plan-assignment side effects on the
// tenant row itself (subscription status and point-of-sale type).
func (r *TenantRegistry) UpdateTenantPlanMeta(ctx context.Context, id uuid.UUID, status models.TenantStatus, posType string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE tenants SET status = $1, pos_type = COALESCE(NULLIF($2, ''), pos_type), updated_at = NOW()
		WHERE id = $3`,
		status, posType, id)
	if err != nil {
		return fmt.Errorf("failed to update tenant plan metadata: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}
