// Package config manages application configuration
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port           string   `yaml:"port"`
	Environment    string   `yaml:"environment"` // "development" or "production"
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Storage
	StoreDriver string `yaml:"store_driver"`
	DatabaseURL string `yaml:"database_url"`

	// Security
	SecretKey     string        `yaml:"secret_key"` // For JWT signing
	TokenDuration time.Duration `yaml:"token_duration"`

	// Sessions
	SessionDuration time.Duration `yaml:"session_duration"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`

	// Demo account, seeded at startup when both are set
	DemoEmail    string `yaml:"demo_email"`
	DemoPassword string `yaml:"demo_password"`
}

func defaultConfig() *Config {
	return &Config{
		Port:            "4000",
		Environment:     "development",
		AllowedOrigins:  []string{"*"},
		StoreDriver:     DriverSQLite,
		DatabaseURL:     "shiller.db",
		SecretKey:       "dev-secret-key-change-in-production",
		TokenDuration:   time.Hour,
		SessionDuration: time.Hour,
		SweepInterval:   60 * time.Second,
		DemoEmail:       "formateur@demo.fr",
		DemoPassword:    "demo123",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// SHILLER_CONFIG if any, then SHILLER_* environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("SHILLER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Port = getEnv("SHILLER_PORT", cfg.Port)
	cfg.Environment = getEnv("SHILLER_ENV", cfg.Environment)
	cfg.AllowedOrigins = getListEnv("SHILLER_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.StoreDriver = getEnv("SHILLER_STORE", cfg.StoreDriver)
	cfg.DatabaseURL = getEnv("SHILLER_DATABASE_URL", cfg.DatabaseURL)
	cfg.SecretKey = getEnv("SHILLER_SECRET_KEY", cfg.SecretKey)
	cfg.TokenDuration = getDurationEnv("SHILLER_TOKEN_DURATION", cfg.TokenDuration)
	cfg.SessionDuration = getDurationEnv("SHILLER_SESSION_DURATION", cfg.SessionDuration)
	cfg.SweepInterval = getDurationEnv("SHILLER_SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.DemoEmail = getEnv("SHILLER_DEMO_EMAIL", cfg.DemoEmail)
	cfg.DemoPassword = getEnv("SHILLER_DEMO_PASSWORD", cfg.DemoPassword)
	if !getBoolEnv("SHILLER_SEED_DEMO", true) {
		cfg.DemoEmail, cfg.DemoPassword = "", ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.StoreDriver == DriverSQLite && c.DatabaseURL == "" {
		return fmt.Errorf("database url is required for the %s driver", DriverSQLite)
	}
	if c.SessionDuration <= 0 || c.SweepInterval <= 0 || c.TokenDuration <= 0 {
		return fmt.Errorf("durations must be positive")
	}
	if c.IsProduction() && c.SecretKey == defaultConfig().SecretKey {
		return fmt.Errorf("secret key must be set in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// OriginAllowed reports whether a browser origin may use the API and WebSocket
func (c *Config) OriginAllowed(origin string) bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
