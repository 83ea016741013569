//	@title			RestoPOS Multi-Tenant Backend API
//	@version		1.0
//	@description	A multi-tenant restaurant point-of-sale SaaS backend: isolated per-tenant databases, tenant provisioning with rollback, and realtime order-change fan-out over SSE and Redis.

//	@contact.name	API Support
//	@contact.email	support@warungtech.example

//	@license.name	MIT
//	@license.url	http://opensource.org/licenses/MIT

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/api"
	"github.com/warungtech/restopos/internal/config"
	"github.com/warungtech/restopos/internal/repository"
	"github.com/warungtech/restopos/internal/services/liveupdate"
	"github.com/warungtech/restopos/internal/services/provisioning"
	"github.com/warungtech/restopos/internal/services/tenantconn"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting restopos backend")

	// Master registry database
	db, err := repository.NewDatabase(cfg.Registry.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize registry database", zap.Error(err))
	}
	defer db.Close()

	registry := repository.NewTenantRegistry(db.Pool(), logger)

	// Administrative connection for tenant database/role management
	adminClient, err := repository.NewDBAdminClient(context.Background(), cfg.TenantDB.AdminURL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database admin client", zap.Error(err))
	}
	defer adminClient.Close()

	// Tenant connection cache
	serverInfo := tenantconn.ServerInfo{
		Host:    cfg.TenantDB.Host,
		Port:    cfg.TenantDB.Port,
		SSLMode: cfg.TenantDB.SSLMode,
	}
	connCache := tenantconn.NewCache(serverInfo, nil, logger)
	defer connCache.Close()

	// Live update broker; Redis is optional, a single-process deployment
	// works with local-only delivery.
	var transport liveupdate.Transport
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		transport = liveupdate.NewRedisTransport(redisClient, logger)
		logger.Info("Redis transport enabled", zap.String("addr", cfg.Redis.Addr))
	}
	broker := liveupdate.NewBroker(transport, cfg.Stream.BufferSize, logger)
	defer broker.Close()

	// Provisioning workflow
	provisioner := provisioning.NewProvisioner(
		registry,
		adminClient,
		provisioning.NewFileMigrator(cfg.Provisioning.MigrationsDir, logger),
		provisioning.NewPGSeeder(logger),
		func(dbName, user, password string) string {
			return tenantconn.BuildDSN(serverInfo, tenantconn.Credentials{
				DBName:   dbName,
				User:     user,
				Password: password,
			})
		},
		provisioning.Options{
			DBNamePrefix:  cfg.Provisioning.DBNamePrefix,
			IDMaxAttempts: cfg.Provisioning.IDMaxAttempts,
			Timeout:       cfg.Provisioning.Timeout,
		},
		logger,
	)

	// API server
	server := api.NewServer(cfg, db, registry, connCache, broker, provisioner, logger)
	server.SetupRoutes()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: server.GetRouter(),
	}

	go func() {
		logger.Info("Server starting", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
	defer cancel()

	// Stop the HTTP server first so no new streams attach, then close the
	// broker to detach the remaining listeners.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	broker.Close()

	logger.Info("Server exited gracefully")
}

func initLogger(level string) (*zap.Logger, error) {
	var zapConfig zap.Config

	if gin.Mode() == gin.DebugMode {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapConfig.Build()
}
