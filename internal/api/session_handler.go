package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warungtech/restopos/internal/middleware"
	"github.com/warungtech/restopos/internal/repository"
	"github.com/warungtech/restopos/internal/services/entitlement"
	"github.com/warungtech/restopos/internal/services/tenantconn"
)

type SessionHandler struct {
	registry  TenantDirectory
	connCache middleware.ConnCache
	jwtAuth   *middleware.JWTAuth
	logger    *zap.Logger
}

func NewSessionHandler(
	registry TenantDirectory,
	connCache middleware.ConnCache,
	jwtAuth *middleware.JWTAuth,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		registry:  registry,
		connCache: connCache,
		jwtAuth:   jwtAuth,
		logger:    logger,
	}
}

type LoginRequest struct {
	RestaurantID int64  `json:"restaurantId" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login godoc
// @Summary Authenticate a staff member
// @Description Verify staff credentials against the tenant database and issue a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param login body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *SessionHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	// This route is tenant-agnostic: it resolves its own tenant and reports
	// a credential error rather than a tenant resolution one.
	tenant, err := h.registry.GetByRestaurantID(c.Request.Context(), req.RestaurantID)
	if err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.logger.Error("Login tenant lookup failed", zap.Error(err), zap.Int64("restaurant_id", req.RestaurantID))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
		return
	}

	conn, err := h.connCache.Get(c.Request.Context(), tenantconn.Credentials{
		DBName:   tenant.DBName,
		User:     tenant.DBUser,
		Password: tenant.DBPassword,
	})
	if err != nil {
		h.logger.Error("Login failed to reach tenant database", zap.Error(err), zap.String("database", tenant.DBName))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
		return
	}

	var staffID, roleID int64
	var passwordHash string
	err = conn.QueryRow(c.Request.Context(), `
		SELECT id, role_id, password_hash FROM staff
		WHERE email = $1 AND active`, req.Email).Scan(&staffID, &roleID, &passwordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.logger.Error("Login staff lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}

	token, err := h.jwtAuth.GenerateToken(
		strconv.FormatInt(staffID, 10),
		strconv.FormatInt(roleID, 10),
		strconv.FormatInt(tenant.RestaurantID, 10))
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "login failed"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(24 * 3600),
	})
}

// Modules godoc
// @Summary Resolve session module access
// @Description Combine the staff role's module list with the tenant's active subscription modules
// @Tags session
// @Produce json
// @Success 200 {object} entitlement.Access
// @Failure 401 {object} ErrorResponse
// @Router /session/modules [get]
func (h *SessionHandler) Modules(c *gin.Context) {
	tenant, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "tenant context missing"})
		return
	}
	conn, ok := middleware.TenantConnFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "tenant connection missing"})
		return
	}

	roleID, err := strconv.ParseInt(c.GetString("role_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "no role information in token"})
		return
	}

	var roleModules []string
	err = conn.QueryRow(c.Request.Context(),
		`SELECT modules FROM roles WHERE id = $1`, roleID).Scan(&roleModules)
	if err != nil {
		h.logger.Error("Failed to load role modules", zap.Error(err), zap.Int64("role_id", roleID))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to resolve modules"})
		return
	}

	tenantModules, err := h.registry.ActiveModules(c.Request.Context(), tenant.ID)
	if err != nil {
		h.logger.Error("Failed to load tenant modules", zap.Error(err), zap.String("tenant_id", tenant.ID.String()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to resolve modules"})
		return
	}

	c.JSON(http.StatusOK, entitlement.Resolve(roleModules, tenantModules))
}
