package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/config"
	"github.com/warungtech/restopos/internal/middleware"
	"github.com/warungtech/restopos/internal/models"
	"github.com/warungtech/restopos/internal/repository"
	"github.com/warungtech/restopos/internal/services/liveupdate"
	"github.com/warungtech/restopos/internal/services/tenantconn"
)

type stubDirectory struct {
	tenants map[int64]*models.Tenant
}

func (s *stubDirectory) GetByRestaurantID(ctx context.Context, restaurantID int64) (*models.Tenant, error) {
	if t, ok := s.tenants[restaurantID]; ok {
		return t, nil
	}
	return nil, repository.ErrTenantNotFound
}

func (s *stubDirectory) GetPlan(ctx context.Context, id uuid.UUID) (*models.ServicePlan, error) {
	return nil, repository.ErrTenantNotFound
}

func (s *stubDirectory) AssignPlan(ctx context.Context, tenantID uuid.UUID, plan *models.ServicePlan, status models.AssignmentStatus, renewsAt time.Time) (*models.PlanAssignment, error) {
	return nil, repository.ErrTenantNotFound
}

func (s *stubDirectory) ActiveModules(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	return nil, nil
}

func (s *stubDirectory) UpdateTenantPlanMeta(ctx context.Context, id uuid.UUID, status models.TenantStatus, posType string) error {
	return nil
}

type stubCache struct{}

func (s *stubCache) Get(ctx context.Context, creds tenantconn.Credentials) (*pgxpool.Pool, error) {
	return &pgxpool.Pool{}, nil
}

func newWiredServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:   "wiring-test-secret",
			TokenExpiry: time.Hour,
			RequireAuth: true,
		},
		Stream: config.StreamConfig{
			PingInterval: time.Hour,
			BufferSize:   16,
		},
	}

	directory := &stubDirectory{tenants: map[int64]*models.Tenant{
		11111111: {
			ID:           uuid.New(),
			RestaurantID: 11111111,
			DBName:       "resto_11111111",
			DBUser:       "resto_u11111111",
		},
	}}

	broker := liveupdate.NewBroker(nil, 16, zap.NewNop())
	t.Cleanup(broker.Close)

	server := NewServer(cfg, nil, directory, &stubCache{}, broker, &mockSignupService{}, zap.NewNop())
	server.SetupRoutes()
	return server, cfg
}

// A request carrying only a bearer token must still resolve its tenant: the
// auth middleware runs before resolution on scoped routes, so the token's
// restaurant_id claim is available as the lowest precedence identifier.
func TestScopedRoutesResolveTenantFromTokenClaim(t *testing.T) {
	server, cfg := newWiredServer(t)

	token, err := middleware.NewJWTAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry).
		GenerateToken("1", "1", "11111111")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/events",
		strings.NewReader(`{"event":"order.created"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestScopedRoutesRequireAuthentication(t *testing.T) {
	server, _ := newWiredServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/events",
		strings.NewReader(`{"event":"order.created"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restaurant-ID", "11111111")

	w := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScopedRoutesRejectTokenWithoutTenant(t *testing.T) {
	server, cfg := newWiredServer(t)

	token, err := middleware.NewJWTAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry).
		GenerateToken("1", "1", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/events",
		strings.NewReader(`{"event":"order.created"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), middleware.ErrMissingTenantContext.Error())
}
