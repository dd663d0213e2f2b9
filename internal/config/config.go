// Package config holds the runtime settings for the separation service.
// Settings come from the environment (optionally via a .env file); flags on
// main override the port, database path, and seed behavior.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application settings.
type Config struct {
	Port            int    `json:"port"`
	DBPath          string `json:"db_path"`
	Environment     string `json:"environment"` // development | production
	JWTSecret       string `json:"-"`
	TokenTTLMinutes int    `json:"token_ttl_minutes"`
	MaxUploadBytes  int64  `json:"max_upload_bytes"`
	ParseWorkers    int    `json:"parse_workers"`
	AdminPIN        string `json:"-"` // seed only
}

const devSecret = "dev-secret-change-in-production"

// Default returns a Config with development defaults.
func Default() *Config {
	return &Config{
		Port:            8000,
		DBPath:          "pedidos.db",
		Environment:     "development",
		JWTSecret:       devSecret,
		TokenTTLMinutes: 720, // 12h, matches the frontend session length
		MaxUploadBytes:  10 << 20,
		ParseWorkers:    4,
		AdminPIN:        "1234",
	}
}

// FromEnv loads a Config from environment variables on top of Default.
// A .env file in the working directory is read first if present.
func FromEnv() (*Config, error) {
	godotenv.Load()

	cfg := Default()
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = n
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("TOKEN_TTL_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TOKEN_TTL_MINUTES: %w", err)
		}
		cfg.TokenTTLMinutes = n
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	if v := os.Getenv("PARSE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PARSE_WORKERS: %w", err)
		}
		cfg.ParseWorkers = n
	}
	if v := os.Getenv("ADMIN_PIN"); v != "" {
		cfg.AdminPIN = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path is empty")
	}
	if c.Environment != "development" && c.Environment != "production" {
		return fmt.Errorf("environment %q must be development or production", c.Environment)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret is empty")
	}
	if c.Environment == "production" {
		if c.JWTSecret == devSecret {
			return fmt.Errorf("jwt secret must be changed for production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("jwt secret must be at least 32 bytes in production")
		}
	}
	if c.TokenTTLMinutes < 1 {
		return fmt.Errorf("token ttl %d must be positive", c.TokenTTLMinutes)
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("max upload bytes %d must be positive", c.MaxUploadBytes)
	}
	if c.ParseWorkers < 1 {
		return fmt.Errorf("parse workers %d must be positive", c.ParseWorkers)
	}
	return nil
}

// TokenTTL returns the token lifetime as a Duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}
