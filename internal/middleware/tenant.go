package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/models"
	"github.com/warungtech/restopos/internal/repository"
	"github.com/warungtech/restopos/internal/services/tenantconn"
)

// ErrMissingTenantContext means no tenant identifier was supplied on a route
// that requires one.
var ErrMissingTenantContext = errors.New("no tenant identifier supplied")

const (
	// RestaurantIDHeader carries the tenant identifier with highest
	// precedence.
	RestaurantIDHeader = "X-Restaurant-ID"

	ctxKeyTenant     = "tenant"
	ctxKeyTenantConn = "tenant_conn"
	ctxKeyUseRedis   = "tenant_use_redis"
)

// TenantLookup is the registry read needed by resolution.
type TenantLookup interface {
	GetByRestaurantID(ctx context.Context, restaurantID int64) (*models.Tenant, error)
}

// ConnCache hands out the pooled handle for a tenant database.
type ConnCache interface {
	Get(ctx context.Context, creds tenantconn.Credentials) (*pgxpool.Pool, error)
}

// TenantResolution resolves the tenant for the request and attaches the
// tenant record, its pooled connection handle and its cross-process flag to
// the gin context. The identifier is taken from the X-Restaurant-ID header,
// then a restaurantId body field, then the authenticated token claim, in
// that order. Routes that are tenant-agnostic (signup, login) simply do not
// mount this middleware.
//
// This is the integrity boundary between tenants sharing a process: the
// handle attached is always the one keyed by the resolved tenant's own
// database name, so a handler can never reach another tenant's data through
// the request context.
func TenantResolution(lookup TenantLookup, cache ConnCache, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		restaurantID, ok := extractRestaurantID(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrMissingTenantContext.Error()})
			c.Abort()
			return
		}

		tenant, err := lookup.GetByRestaurantID(c.Request.Context(), restaurantID)
		if err != nil {
			if errors.Is(err, repository.ErrTenantNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
				c.Abort()
				return
			}
			logger.Error("Tenant resolution failed",
				zap.Error(err), zap.Int64("restaurant_id", restaurantID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve tenant"})
			c.Abort()
			return
		}

		conn, err := cache.Get(c.Request.Context(), tenantconn.Credentials{
			DBName:   tenant.DBName,
			User:     tenant.DBUser,
			Password: tenant.DBPassword,
		})
		if err != nil {
			logger.Error("Failed to obtain tenant connection",
				zap.Error(err), zap.String("database", tenant.DBName))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reach tenant database"})
			c.Abort()
			return
		}

		c.Set(ctxKeyTenant, tenant)
		c.Set(ctxKeyTenantConn, conn)
		c.Set(ctxKeyUseRedis, tenant.UseRedis)

		c.Next()
	}
}

// extractRestaurantID applies the identifier precedence: header, body field,
// token claim.
func extractRestaurantID(c *gin.Context) (int64, bool) {
	if raw := c.GetHeader(RestaurantIDHeader); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		return id, err == nil
	}

	if id, ok := restaurantIDFromBody(c); ok {
		return id, true
	}

	if claim := c.GetString("restaurant_id"); claim != "" {
		id, err := strconv.ParseInt(claim, 10, 64)
		return id, err == nil
	}

	return 0, false
}

// restaurantIDFromBody peeks a restaurantId field out of a JSON body and
// restores the body for downstream binding.
func restaurantIDFromBody(c *gin.Context) (int64, bool) {
	if c.Request.Body == nil || c.ContentType() != "application/json" {
		return 0, false
	}

	raw, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
	if err != nil || len(raw) == 0 {
		return 0, false
	}

	var peek struct {
		RestaurantID json.Number `json:"restaurantId"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return 0, false
	}
	if peek.RestaurantID == "" {
		return 0, false
	}

	id, err := peek.RestaurantID.Int64()
	return id, err == nil
}

// TenantFromContext returns the resolved tenant record. Valid only for the
// lifetime of the request; the connection handle it references outlives it.
func TenantFromContext(c *gin.Context) (*models.Tenant, bool) {
	v, ok := c.Get(ctxKeyTenant)
	if !ok {
		return nil, false
	}
	tenant, ok := v.(*models.Tenant)
	return tenant, ok
}

// TenantConnFromContext returns the tenant-scoped database handle.
func TenantConnFromContext(c *gin.Context) (*pgxpool.Pool, bool) {
	v, ok := c.Get(ctxKeyTenantConn)
	if !ok {
		return nil, false
	}
	conn, ok := v.(*pgxpool.Pool)
	return conn, ok
}

// UseRedisFromContext reports whether the resolved tenant is configured for
// cross-process delivery.
func UseRedisFromContext(c *gin.Context) bool {
	return c.GetBool(ctxKeyUseRedis)
}
