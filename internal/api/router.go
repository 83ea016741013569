package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/warungtech/restopos/docs"
	"github.com/warungtech/restopos/internal/config"
	"github.com/warungtech/restopos/internal/middleware"
	"github.com/warungtech/restopos/internal/models"
	"github.com/warungtech/restopos/internal/repository"
	"github.com/warungtech/restopos/internal/services/liveupdate"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// TenantDirectory is what the handlers and tenant resolution need from the
// master registry.
type TenantDirectory interface {
	GetByRestaurantID(ctx context.Context, restaurantID int64) (*models.Tenant, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.ServicePlan, error)
	AssignPlan(ctx context.Context, tenantID uuid.UUID, plan *models.ServicePlan, status models.AssignmentStatus, renewsAt time.Time) (*models.PlanAssignment, error)
	ActiveModules(ctx context.Context, tenantID uuid.UUID) ([]string, error)
	UpdateTenantPlanMeta(ctx context.Context, id uuid.UUID, status models.TenantStatus, posType string) error
}

type Server struct {
	router         *gin.Engine
	config         *config.Config
	db             *repository.Database
	registry       TenantDirectory
	connCache      middleware.ConnCache
	jwtAuth        *middleware.JWTAuth
	signupHandler  *SignupHandler
	streamHandler  *StreamHandler
	sessionHandler *SessionHandler
	planHandler    *PlanHandler
	logger         *zap.Logger
}

func NewServer(
	cfg *config.Config,
	db *repository.Database,
	registry TenantDirectory,
	connCache middleware.ConnCache,
	broker *liveupdate.Broker,
	provisioner SignupService,
	logger *zap.Logger,
) *Server {
	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())

	if cfg.Metrics.Enabled {
		router.Use(middleware.PrometheusMiddleware())
	}

	jwtAuth := middleware.NewJWTAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)

	return &Server{
		router:         router,
		config:         cfg,
		db:             db,
		registry:       registry,
		connCache:      connCache,
		jwtAuth:        jwtAuth,
		signupHandler:  NewSignupHandler(provisioner, logger),
		streamHandler:  NewStreamHandler(broker, cfg.Stream.PingInterval, logger),
		sessionHandler: NewSessionHandler(registry, connCache, jwtAuth, logger),
		planHandler:    NewPlanHandler(registry, logger),
		logger:         logger,
	}
}

func (s *Server) SetupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	// Prometheus metrics endpoint (if enabled)
	if s.config.Metrics.Enabled {
		s.router.GET(s.config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Swagger documentation
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Tenant-agnostic routes: signup provisions the tenant, login resolves
	// its tenant from the request body and reports its own errors.
	s.router.POST("/api/v1/signup", s.signupHandler.Signup)
	s.router.POST("/auth/login", s.sessionHandler.Login)

	// API v1 routes
	v1 := s.router.Group("/api/v1")

	resolveTenant := middleware.TenantResolution(s.registry, s.connCache, s.logger)

	// Live update stream: tenant-scoped, long-lived.
	v1.GET("/live", resolveTenant, s.streamHandler.Stream)

	// Tenant-scoped, authenticated routes. Auth runs first so the token's
	// restaurant_id claim is available as a resolution source.
	scoped := v1.Group("")
	if s.config.Auth.RequireAuth {
		scoped.Use(s.jwtAuth.Middleware())
	}
	scoped.Use(resolveTenant)
	{
		scoped.POST("/orders/events", s.streamHandler.PublishEvent)
		scoped.GET("/session/modules", s.sessionHandler.Modules)
	}

	// Admin plan assignment addresses the tenant by path parameter.
	admin := v1.Group("/admin")
	if s.config.Auth.RequireAuth {
		admin.Use(s.jwtAuth.Middleware())
	}
	{
		admin.POST("/tenants/:restaurantId/plan", s.planHandler.AssignPlan)
	}
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

func (s *Server) healthCheck(c *gin.Context) {
	if s.db != nil {
		if err := s.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "service": "restopos"})
			return
		}
	}
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "restopos",
	})
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Restaurant-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
