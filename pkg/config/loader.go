// Package config provides simple configuration loading
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller and validated
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Substitute environment variables
	content := string(data)
	content = substituteEnvVars(content)

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FromEnv builds a Config from defaults overridden by PULSEBOARD_*
// environment variables, e.g. PULSEBOARD_DATABASE_HOST or
// PULSEBOARD_PERSISTENCE_ENABLED.
func FromEnv() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PULSEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := NewConfig()

	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.database", cfg.Database.Database)
	v.SetDefault("database.ssl_mode", cfg.Database.SSLMode)
	v.SetDefault("database.application_name", cfg.Database.ApplicationName)
	v.SetDefault("pool.max_conns", cfg.Pool.MaxConns)
	v.SetDefault("pool.min_conns", cfg.Pool.MinConns)
	v.SetDefault("pool.acquire_timeout", cfg.Pool.AcquireTimeout)
	v.SetDefault("pool.idle_timeout", cfg.Pool.IdleTimeout)
	v.SetDefault("pool.max_conn_lifetime", cfg.Pool.MaxConnLifetime)
	v.SetDefault("pool.health_check_period", cfg.Pool.HealthCheckPeriod)
	v.SetDefault("persistence.enabled", cfg.Persistence.Enabled)
	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_encoding", cfg.Observability.LogEncoding)
	v.SetDefault("observability.development", cfg.Observability.Development)
	v.SetDefault("observability.enable_metrics", cfg.Observability.EnableMetrics)

	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.User = v.GetString("database.user")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.Database = v.GetString("database.database")
	cfg.Database.SSLMode = v.GetString("database.ssl_mode")
	cfg.Database.ApplicationName = v.GetString("database.application_name")
	cfg.Pool.MaxConns = v.GetInt32("pool.max_conns")
	cfg.Pool.MinConns = v.GetInt32("pool.min_conns")
	cfg.Pool.AcquireTimeout = v.GetDuration("pool.acquire_timeout")
	cfg.Pool.IdleTimeout = v.GetDuration("pool.idle_timeout")
	cfg.Pool.MaxConnLifetime = v.GetDuration("pool.max_conn_lifetime")
	cfg.Pool.HealthCheckPeriod = v.GetDuration("pool.health_check_period")
	cfg.Persistence.Enabled = v.GetBool("persistence.enabled")
	cfg.Observability.LogLevel = v.GetString("observability.log_level")
	cfg.Observability.LogEncoding = v.GetString("observability.log_encoding")
	cfg.Observability.Development = v.GetBool("observability.development")
	cfg.Observability.EnableMetrics = v.GetBool("observability.enable_metrics")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
