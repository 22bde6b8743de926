// Package config loads the server configuration from netgrid.yml with
// environment variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the netgrid server configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LogLevel string         `mapstructure:"log_level"`
}

// DatabaseConfig selects the graph store backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite3 or pgx
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig represents the HTTP API configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// BlobConfig locates the file store for view structures and backgrounds.
type BlobConfig struct {
	Dir string `mapstructure:"dir"`
}

// RulesConfig holds the business rule engine switches.
type RulesConfig struct {
	Enforce bool `mapstructure:"enforce"`
}

// AuthConfig holds the session token settings.
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	SessionMinutes int    `mapstructure:"session_minutes"`
}

// Load loads the configuration from netgrid.yml or netgrid.yaml in the
// working directory. NETGRID_* environment variables override file values.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "netgrid.db")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("blob.dir", "blobdata")
	v.SetDefault("rules.enforce", false)
	v.SetDefault("auth.session_minutes", 60)
	v.SetDefault("log_level", "info")

	v.SetConfigName("netgrid")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("netgrid")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or pgx, got: %s", cfg.Database.Driver)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Auth.SessionMinutes <= 0 {
		return fmt.Errorf("auth.session_minutes must be positive, got: %d", cfg.Auth.SessionMinutes)
	}
	return nil
}
