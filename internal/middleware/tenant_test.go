package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/models"
	"github.com/warungtech/restopos/internal/repository"
	"github.com/warungtech/restopos/internal/services/tenantconn"
)

type stubLookup struct {
	tenants map[int64]*models.Tenant
	err     error
}

func (s *stubLookup) GetByRestaurantID(ctx context.Context, restaurantID int64) (*models.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.tenants[restaurantID]; ok {
		return t, nil
	}
	return nil, repository.ErrTenantNotFound
}

type stubConnCache struct {
	pools map[string]*pgxpool.Pool
	creds []tenantconn.Credentials
	err   error
}

func (s *stubConnCache) Get(ctx context.Context, creds tenantconn.Credentials) (*pgxpool.Pool, error) {
	s.creds = append(s.creds, creds)
	if s.err != nil {
		return nil, s.err
	}
	pool, ok := s.pools[creds.DBName]
	if !ok {
		pool = &pgxpool.Pool{}
		s.pools[creds.DBName] = pool
	}
	return pool, nil
}

func testTenant(restaurantID int64) *models.Tenant {
	id := strconv.FormatInt(restaurantID, 10)
	return &models.Tenant{
		RestaurantID: restaurantID,
		Name:         "Test Resto",
		DBName:       "resto_" + id,
		DBUser:       "resto_u" + id,
		DBPassword:   "secret",
		UseRedis:     true,
	}
}

type resolutionFixture struct {
	lookup *stubLookup
	cache  *stubConnCache
	router *gin.Engine

	// captured by the terminal handler
	resolved *models.Tenant
	conn     *pgxpool.Pool
	useRedis bool
}

func newResolutionFixture(tenants ...*models.Tenant) *resolutionFixture {
	gin.SetMode(gin.TestMode)

	f := &resolutionFixture{
		lookup: &stubLookup{tenants: make(map[int64]*models.Tenant)},
		cache:  &stubConnCache{pools: make(map[string]*pgxpool.Pool)},
	}
	for _, t := range tenants {
		f.lookup.tenants[t.RestaurantID] = t
	}

	f.router = gin.New()
	f.router.POST("/orders", TenantResolution(f.lookup, f.cache, zap.NewNop()), func(c *gin.Context) {
		f.resolved, _ = TenantFromContext(c)
		f.conn, _ = TenantConnFromContext(c)
		f.useRedis = UseRedisFromContext(c)
		c.Status(http.StatusOK)
	})
	return f
}

func (f *resolutionFixture) do(mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestTenantResolutionFromHeader(t *testing.T) {
	tenant := testTenant(11111111)
	f := newResolutionFixture(tenant)

	w := f.do(func(req *http.Request) {
		req.Header.Set(RestaurantIDHeader, "11111111")
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, tenant, f.resolved)
	assert.NotNil(t, f.conn)
	assert.True(t, f.useRedis)

	// The handle was requested with the tenant's own credentials.
	require.Len(t, f.cache.creds, 1)
	assert.Equal(t, tenant.DBName, f.cache.creds[0].DBName)
	assert.Equal(t, tenant.DBUser, f.cache.creds[0].User)
}

func TestTenantResolutionFromBody(t *testing.T) {
	tenant := testTenant(22222222)
	f := newResolutionFixture(tenant)

	body := `{"restaurantId": 22222222, "table": 4}`
	var seenBody []byte
	f.router.POST("/echo", TenantResolution(f.lookup, f.cache, zap.NewNop()), func(c *gin.Context) {
		seenBody, _ = io.ReadAll(c.Request.Body)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// Peeking the identifier must not consume the body.
	assert.JSONEq(t, body, string(seenBody))
}

func TestTenantResolutionHeaderBeatsBody(t *testing.T) {
	headerTenant := testTenant(11111111)
	bodyTenant := testTenant(22222222)
	f := newResolutionFixture(headerTenant, bodyTenant)

	w := f.do(func(req *http.Request) {
		req.Header.Set(RestaurantIDHeader, "11111111")
		req.Header.Set("Content-Type", "application/json")
		req.Body = io.NopCloser(bytes.NewBufferString(`{"restaurantId": 22222222}`))
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, headerTenant, f.resolved)
}

func TestTenantResolutionFallsBackToClaim(t *testing.T) {
	tenant := testTenant(33333333)
	f := newResolutionFixture(tenant)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/claim",
		func(c *gin.Context) { c.Set("restaurant_id", "33333333") },
		TenantResolution(f.lookup, f.cache, zap.NewNop()),
		func(c *gin.Context) {
			f.resolved, _ = TenantFromContext(c)
			c.Status(http.StatusOK)
		})

	req := httptest.NewRequest(http.MethodPost, "/claim", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, tenant, f.resolved)
}

func TestTenantResolutionMissingIdentifier(t *testing.T) {
	f := newResolutionFixture()

	w := f.do(nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ErrMissingTenantContext.Error())
}

func TestTenantResolutionUnknownTenant(t *testing.T) {
	f := newResolutionFixture()

	w := f.do(func(req *http.Request) {
		req.Header.Set(RestaurantIDHeader, "99999999")
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, f.cache.creds, "no connection attempt for an unknown tenant")
}

func TestTenantResolutionRegistryFailure(t *testing.T) {
	f := newResolutionFixture()
	f.lookup.err = errors.New("registry down")

	w := f.do(func(req *http.Request) {
		req.Header.Set(RestaurantIDHeader, "11111111")
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTenantResolutionConnectionFailure(t *testing.T) {
	f := newResolutionFixture(testTenant(11111111))
	f.cache.err = errors.New("pool exhausted")

	w := f.do(func(req *http.Request) {
		req.Header.Set(RestaurantIDHeader, "11111111")
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTenantResolutionIsolatesTenants(t *testing.T) {
	tenantA := testTenant(11111111)
	tenantB := testTenant(22222222)
	f := newResolutionFixture(tenantA, tenantB)

	wA := f.do(func(req *http.Request) {
		req.Header.Set(RestaurantIDHeader, "11111111")
	})
	require.Equal(t, http.StatusOK, wA.Code)
	connA := f.conn

	wB := f.do(func(req *http.Request) {
		req.Header.Set(RestaurantIDHeader, "22222222")
	})
	require.Equal(t, http.StatusOK, wB.Code)
	connB := f.conn

	// Each request got the handle keyed by its own tenant's database.
	assert.NotSame(t, connA, connB)
	assert.Same(t, f.cache.pools[tenantA.DBName], connA)
	assert.Same(t, f.cache.pools[tenantB.DBName], connB)
}
