// Package config loads application configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds Postgres and Redis connection settings.
// RedisURL is optional; without it rate windows persist in Postgres.
type DatabaseConfig struct {
	PostgresURL string
	RedisURL    string
}

// RateLimitConfig holds rate limiter settings
type RateLimitConfig struct {
	Window time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CREWHALL_HOST", "0.0.0.0"),
			Port:            getEnv("CREWHALL_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CREWHALL_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CREWHALL_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CREWHALL_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CREWHALL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			PostgresURL: getEnv("CREWHALL_POSTGRES_URL", ""),
			RedisURL:    getEnv("CREWHALL_REDIS_URL", ""),
		},
		RateLimit: RateLimitConfig{
			Window: getEnvDuration("CREWHALL_RATE_WINDOW", time.Minute),
		},
		LogLevel: getEnv("CREWHALL_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Database.PostgresURL == "" {
		return fmt.Errorf("CREWHALL_POSTGRES_URL is required")
	}
	if c.RateLimit.Window < time.Second {
		return fmt.Errorf("CREWHALL_RATE_WINDOW must be at least 1s")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("CREWHALL_PORT must be numeric: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
