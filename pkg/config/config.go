package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/campfirehq/campfire/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration
	Redis RedisConfig `yaml:"redis"`

	// Audit configuration
	Audit AuditConfig `yaml:"audit"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	PostgresURL  string        `yaml:"postgres_url"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime"`
}

// RedisConfig holds the cache layer settings. Leave Addr empty to run
// without the L2 cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// L1CacheSize is the entry capacity of the in-process LRU.
	L1CacheSize int `yaml:"l1_cache_size"`
}

// AuditConfig holds the audit trail settings
type AuditConfig struct {
	// RetentionDays is the horizon past which entries are deleted.
	RetentionDays int `yaml:"retention_days"`

	// CleanupSchedule is a cron expression for the janitor.
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// LoadConfig loads configuration from environment variables. When
// CAMPFIRE_CONFIG_FILE is set, that YAML file is applied first and the
// environment overrides it.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CAMPFIRE_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			ConnLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			L1CacheSize: 1024,
		},
		Audit: AuditConfig{
			RetentionDays:   365,
			CleanupSchedule: "5 0 * * *",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
		},
	}
}

// applyFile overlays settings from a YAML file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv overlays CAMPFIRE_* environment variables.
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("CAMPFIRE_HOST", c.Server.Host)
	c.Server.Port = getEnv("CAMPFIRE_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("CAMPFIRE_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("CAMPFIRE_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("CAMPFIRE_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("CAMPFIRE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.PostgresURL = getEnv("CAMPFIRE_POSTGRES_URL", c.Database.PostgresURL)
	c.Database.MaxOpenConns = getEnvInt("CAMPFIRE_POSTGRES_MAX_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("CAMPFIRE_POSTGRES_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnLifetime = getEnvDuration("CAMPFIRE_POSTGRES_CONN_LIFETIME", c.Database.ConnLifetime)

	c.Redis.Addr = getEnv("CAMPFIRE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("CAMPFIRE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("CAMPFIRE_REDIS_DB", c.Redis.DB)
	c.Redis.L1CacheSize = getEnvInt("CAMPFIRE_L1_CACHE_SIZE", c.Redis.L1CacheSize)

	c.Audit.RetentionDays = getEnvInt("CAMPFIRE_AUDIT_RETENTION_DAYS", c.Audit.RetentionDays)
	c.Audit.CleanupSchedule = getEnv("CAMPFIRE_AUDIT_CLEANUP_SCHEDULE", c.Audit.CleanupSchedule)

	c.Observability.LogLevel = getEnv("CAMPFIRE_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("CAMPFIRE_METRICS_ENABLED", c.Observability.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}
	if c.Redis.L1CacheSize <= 0 {
		return fmt.Errorf("L1 cache size must be positive")
	}
	return nil
}

// LogLevel returns the parsed observability log level.
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLevel(c.Observability.LogLevel)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
