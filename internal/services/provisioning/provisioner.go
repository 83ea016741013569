package provisioning

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warungtech/restopos/internal/metrics"
	"github.com/warungtech/restopos/internal/models"
	"github.com/warungtech/restopos/internal/repository"
)

var (
	// ErrDuplicateEmail rejects a signup whose contact email already has a
	// tenant.
	ErrDuplicateEmail = errors.New("a tenant already exists for this email")

	// ErrInvalidPlanSelection rejects a signup that names no plan or an
	// inactive one. Raised before any external resource is touched.
	ErrInvalidPlanSelection = errors.New("selected plan does not exist or is not active")

	// ErrIDSpaceExhausted means the identifier redraw loop ran out of
	// attempts. Practically unreachable with an 8-digit space.
	ErrIDSpaceExhausted = errors.New("could not draw an unused restaurant id")
)

// ProvisioningError wraps a failure of one of the resource-touching steps.
// Callers are not expected to distinguish steps; the Step field exists for
// logs and metrics.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Registry is the subset of the tenant registry the workflow needs.
type Registry interface {
	GetByEmail(ctx context.Context, email string) (*models.Tenant, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.ServicePlan, error)
	RestaurantIDExists(ctx context.Context, restaurantID int64) (bool, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	AssignPlan(ctx context.Context, tenantID uuid.UUID, plan *models.ServicePlan, status models.AssignmentStatus, renewsAt time.Time) (*models.PlanAssignment, error)
	DeleteTenant(ctx context.Context, id uuid.UUID) error
}

// DBAdmin creates and destroys tenant databases and roles.
type DBAdmin interface {
	CreateDatabase(ctx context.Context, name string) error
	CreateUser(ctx context.Context, user, password string) error
	GrantDatabase(ctx context.Context, name, user string) error
	DropDatabase(ctx context.Context, name string) error
	DropUser(ctx context.Context, user string) error
}

// Migrator applies the tenant schema to a freshly created database.
type Migrator interface {
	Migrate(ctx context.Context, dsn string) error
}

// Seeder writes the initial records into a migrated tenant database.
type Seeder interface {
	Seed(ctx context.Context, dsn string, data SeedData) error
}

// Options carry the workflow tuning knobs from config.
type Options struct {
	DBNamePrefix  string
	IDMaxAttempts int
	Timeout       time.Duration
	TrialDays     int
}

// DSNBuilder renders the connection string for a tenant database given its
// credentials. Owned by the connection-cache package in production wiring.
type DSNBuilder func(dbName, user, password string) string

// Provisioner turns a signup request into a fully working, isolated tenant:
// dedicated database, dedicated scoped role, migrated schema, seed data and a
// registry record, with compensating cleanup when any step fails.
type Provisioner struct {
	registry Registry
	admin    DBAdmin
	migrator Migrator
	seeder   Seeder
	buildDSN DSNBuilder
	opts     Options
	logger   *zap.Logger
}

func NewProvisioner(
	registry Registry,
	admin DBAdmin,
	migrator Migrator,
	seeder Seeder,
	buildDSN DSNBuilder,
	opts Options,
	logger *zap.Logger,
) *Provisioner {
	if opts.IDMaxAttempts <= 0 {
		opts.IDMaxAttempts = 25
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.TrialDays <= 0 {
		opts.TrialDays = 30
	}
	return &Provisioner{
		registry: registry,
		admin:    admin,
		migrator: migrator,
		seeder:   seeder,
		buildDSN: buildDSN,
		opts:     opts,
		logger:   logger,
	}
}

// Signup runs the full provisioning workflow. On success the registry holds
// the tenant record with a live plan assignment and the tenant database is
// migrated and seeded. On failure no tenant artifacts remain reachable:
// the database, role and any registry rows written are removed before the
// error is returned. Cleanup itself is best-effort; its failures are logged
// but do not change the response.
func (p *Provisioner) Signup(ctx context.Context, req *models.SignupRequest) (*models.SignupResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	// Step 1: uniqueness check.
	if _, err := p.registry.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrTenantNotFound) {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}

	// Step 2: plan resolution, before any resource is created.
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return nil, ErrInvalidPlanSelection
	}
	plan, err := p.registry.GetPlan(ctx, planID)
	if err != nil {
		return nil, ErrInvalidPlanSelection
	}
	if !plan.Active {
		return nil, ErrInvalidPlanSelection
	}

	// Hash the admin password up front so a hashing failure costs nothing.
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	// Step 3: tenant-facing identifier by random draw with redraw on
	// collision. Gaps and retries are expected and harmless.
	restaurantID, err := p.drawRestaurantID(ctx)
	if err != nil {
		return nil, err
	}

	dbName := fmt.Sprintf("%s%d", p.opts.DBNamePrefix, restaurantID)
	dbUser := fmt.Sprintf("%su%d", p.opts.DBNamePrefix, restaurantID)
	dbPassword, err := randomSecret(24)
	if err != nil {
		return nil, fmt.Errorf("failed to generate database credentials: %w", err)
	}

	state := &rollbackState{dbName: dbName, dbUser: dbUser}

	// Step 4: dedicated database and scoped role.
	if err := p.admin.CreateDatabase(ctx, dbName); err != nil {
		return nil, p.fail(ctx, state, "create_database", err)
	}
	state.dbCreated = true

	if err := p.admin.CreateUser(ctx, dbUser, dbPassword); err != nil {
		return nil, p.fail(ctx, state, "create_user", err)
	}
	state.userCreated = true

	if err := p.admin.GrantDatabase(ctx, dbName, dbUser); err != nil {
		return nil, p.fail(ctx, state, "grant_database", err)
	}

	// Step 5: registry record and initial plan assignment.
	tenant := &models.Tenant{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Name:         req.RestaurantName,
		Email:        req.Email,
		DBName:       dbName,
		DBUser:       dbUser,
		DBPassword:   dbPassword,
		UseRedis:     true,
		Status:       models.TenantStatusTrial,
		POSType:      "standard",
	}
	if err := p.registry.CreateTenant(ctx, tenant); err != nil {
		return nil, p.fail(ctx, state, "registry_write", err)
	}
	state.tenantID = tenant.ID

	renewsAt := time.Now().AddDate(0, 0, p.opts.TrialDays)
	assignment, err := p.registry.AssignPlan(ctx, tenant.ID, plan, models.AssignmentStatusTrial, renewsAt)
	if err != nil {
		return nil, p.fail(ctx, state, "plan_assignment", err)
	}

	dsn := p.buildDSN(dbName, dbUser, dbPassword)

	// Step 6: tenant schema migration. A failure here must not leave an
	// empty, unmigrated database reachable.
	if err := p.migrator.Migrate(ctx, dsn); err != nil {
		return nil, p.fail(ctx, state, "schema_migration", err)
	}

	// Step 7: seed data.
	seed := SeedData{
		AdminName:    req.AdminName,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Country:      req.Country,
		Modules:      plan.Modules,
	}
	if err := p.seeder.Seed(ctx, dsn, seed); err != nil {
		return nil, p.fail(ctx, state, "seeding", err)
	}

	p.logger.Info("Tenant provisioned",
		zap.Int64("restaurant_id", restaurantID),
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("plan", plan.Name))
	metrics.IncrementSignups("success")

	return &models.SignupResult{
		RestaurantID: restaurantID,
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		PlanStatus:   assignment.Status,
		RenewsAt:     assignment.RenewsAt,
	}, nil
}

func (p *Provisioner) drawRestaurantID(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < p.opts.IDMaxAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(90000000))
		if err != nil {
			return 0, fmt.Errorf("failed to draw restaurant id: %w", err)
		}
		candidate := n.Int64() + 10000000

		exists, err := p.registry.RestaurantIDExists(ctx, candidate)
		if err != nil {
			return 0, fmt.Errorf("failed to check restaurant id: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return 0, ErrIDSpaceExhausted
}

type rollbackState struct {
	dbName      string
	dbUser      string
	dbCreated   bool
	userCreated bool
	tenantID    uuid.UUID
}

// fail runs the compensating cleanup for whatever was created so far and
// wraps the original error. Cleanup runs on a fresh context so it still
// executes when the workflow deadline has already expired.
func (p *Provisioner) fail(ctx context.Context, state *rollbackState, step string, cause error) error {
	p.logger.Error("Provisioning step failed, rolling back",
		zap.String("step", step),
		zap.Error(cause))
	metrics.IncrementSignups("failed")
	metrics.IncrementProvisioningFailures(step)

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if state.tenantID != uuid.Nil {
		if err := p.registry.DeleteTenant(cleanupCtx, state.tenantID); err != nil {
			p.logger.Error("Cleanup failed: registry rows left behind",
				zap.Error(err), zap.String("tenant_id", state.tenantID.String()))
		}
	}

	if state.dbCreated {
		if err := p.admin.DropDatabase(cleanupCtx, state.dbName); err != nil {
			p.logger.Error("Cleanup failed: tenant database left behind",
				zap.Error(err), zap.String("database", state.dbName))
		}
	}

	if state.userCreated {
		if err := p.admin.DropUser(cleanupCtx, state.dbUser); err != nil {
			p.logger.Error("Cleanup failed: tenant database user left behind",
				zap.Error(err), zap.String("user", state.dbUser))
		}
	}

	return &ProvisioningError{Step: step, Err: cause}
}

// randomSecret returns n random bytes hex-encoded.
func randomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
