package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	TenantDB     TenantDBConfig     `mapstructure:"tenant_db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Stream       StreamConfig       `mapstructure:"stream"`

	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RegistryConfig points at the master store shared by all tenants.
type RegistryConfig struct {
	URL string `mapstructure:"url"`
}

// TenantDBConfig describes the database server hosting the per-tenant
// databases. AdminURL must carry a role allowed to CREATE DATABASE/ROLE;
// Host/Port/SSLMode are what tenant pool DSNs are built against.
type TenantDBConfig struct {
	AdminURL string `mapstructure:"admin_url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
	RequireAuth bool          `mapstructure:"require_auth"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ProvisioningConfig struct {
	MigrationsDir string        `mapstructure:"migrations_dir"`
	DBNamePrefix  string        `mapstructure:"db_name_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
	IDMaxAttempts int           `mapstructure:"id_max_attempts"`
}

type StreamConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	BufferSize   int           `mapstructure:"buffer_size"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("graceful_shutdown_timeout", "30s")

	// Tenant database server defaults
	v.SetDefault("tenant_db.host", "localhost")
	v.SetDefault("tenant_db.port", 5432)
	v.SetDefault("tenant_db.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", true)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "your-256-bit-secret-key-for-development-only-change-in-production")
	v.SetDefault("auth.token_expiry", "24h")
	v.SetDefault("auth.require_auth", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Provisioning defaults
	v.SetDefault("provisioning.migrations_dir", "migrations/tenant")
	v.SetDefault("provisioning.db_name_prefix", "resto_")
	v.SetDefault("provisioning.timeout", "2m")
	v.SetDefault("provisioning.id_max_attempts", 25)

	// Stream defaults
	v.SetDefault("stream.ping_interval", "25s")
	v.SetDefault("stream.buffer_size", 16)

	// Read from config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Registry.URL == "" {
		return fmt.Errorf("registry.url is required")
	}

	if cfg.TenantDB.AdminURL == "" {
		return fmt.Errorf("tenant_db.admin_url is required")
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if cfg.Provisioning.IDMaxAttempts <= 0 {
		return fmt.Errorf("provisioning.id_max_attempts must be greater than 0")
	}

	if cfg.Stream.PingInterval <= 0 {
		return fmt.Errorf("stream.ping_interval must be greater than 0")
	}

	return nil
}
