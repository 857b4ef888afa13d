// Package config provides the configuration system for the Pulseboard
// data-access layer.
//
// The configuration is organized into logical sections:
//   - Database: connection parameters for the backing PostgreSQL store
//   - Pool: connection pool sizing and timeouts
//   - Persistence: the enable/disable flag governing manager selection
//   - Observability: logging and metrics settings
//
// Example usage:
//
//	cfg := config.NewConfig()
//	cfg.Pool.MaxConns = 20
//	cfg.Persistence.Enabled = true
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for the data-access layer.
type Config struct {
	// Database contains connection parameters for the backing store
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Pool contains connection pool sizing and timeout settings
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Persistence governs manager selection at composition time
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`

	// Observability settings for logging and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// DatabaseConfig contains connection parameters for the backing store.
type DatabaseConfig struct {
	// Host of the PostgreSQL server
	Host string `yaml:"host" json:"host"`
	// Port of the PostgreSQL server
	Port int `yaml:"port" json:"port"`
	// User for authentication
	User string `yaml:"user" json:"user"`
	// Password for authentication (use env vars in production)
	Password string `yaml:"password" json:"password"`
	// Database name to connect to
	Database string `yaml:"database" json:"database"`
	// SSLMode selects TLS behavior (disable, require, verify-full, ...)
	SSLMode string `yaml:"ssl_mode" json:"ssl_mode"`
	// ApplicationName reported to the server for diagnostics
	ApplicationName string `yaml:"application_name" json:"application_name"`
}

// PoolConfig contains connection pool sizing and timeout settings.
// These bound worst-case latency and resource usage under load.
type PoolConfig struct {
	// MaxConns caps the number of concurrently checked-out connections
	MaxConns int32 `yaml:"max_conns" json:"max_conns"`
	// MinConns keeps a floor of warm connections in the pool
	MinConns int32 `yaml:"min_conns" json:"min_conns"`
	// AcquireTimeout bounds how long a caller waits for a connection
	AcquireTimeout time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"`
	// IdleTimeout before an idle connection is closed
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	// MaxConnLifetime before a connection is recycled
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" json:"max_conn_lifetime"`
	// HealthCheckPeriod between background pool health sweeps
	HealthCheckPeriod time.Duration `yaml:"health_check_period" json:"health_check_period"`
}

// PersistenceConfig contains the single flag read by the selection gate.
type PersistenceConfig struct {
	// Enabled selects the real connection manager; when false the
	// stand-in manager serves all callers with empty results
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// ObservabilityConfig contains monitoring and logging settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding selects json or console output
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// Development enables human-friendly logging
	Development bool `yaml:"development" json:"development"`
	// EnableMetrics activates Prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
}

// NewConfig creates a Config with production-ready defaults. Callers
// override individual fields as needed and then call Validate.
func NewConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Database:        "pulseboard",
			SSLMode:         "prefer",
			ApplicationName: "pulseboard",
		},
		Pool: PoolConfig{
			MaxConns:          10,
			MinConns:          2,
			AcquireTimeout:    10 * time.Second,
			IdleTimeout:       5 * time.Minute,
			MaxConnLifetime:   time.Hour,
			HealthCheckPeriod: 30 * time.Second,
		},
		Persistence: PersistenceConfig{
			Enabled: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogEncoding:   "json",
			Development:   false,
			EnableMetrics: true,
		},
	}
}

// Validate validates the configuration for correctness.
// It checks required fields and ensures values are within acceptable
// ranges. Callers should invoke this after loading configuration to catch
// errors early.
func (c *Config) Validate() error {
	if c.Persistence.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("database.port must be in (0, 65535]")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
	}
	if c.Pool.MaxConns <= 0 {
		return fmt.Errorf("pool.max_conns must be positive")
	}
	if c.Pool.MinConns < 0 {
		return fmt.Errorf("pool.min_conns cannot be negative")
	}
	if c.Pool.MinConns > c.Pool.MaxConns {
		return fmt.Errorf("pool.min_conns cannot exceed pool.max_conns")
	}
	if c.Pool.AcquireTimeout <= 0 {
		return fmt.Errorf("pool.acquire_timeout must be positive")
	}
	return nil
}

// ConnString builds a keyword/value connection string for pgx from the
// database section.
func (c *Config) ConnString() string {
	s := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Database, c.Database.SSLMode)
	if c.Database.Password != "" {
		s += fmt.Sprintf(" password=%s", c.Database.Password)
	}
	if c.Database.ApplicationName != "" {
		s += fmt.Sprintf(" application_name=%s", c.Database.ApplicationName)
	}
	return s
}
