// Package config provides configuration management for the Evolution gateway.
// It loads configuration from environment variables with sensible defaults and
// validates the result so the process fails fast on misconfiguration.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 3001)
//   - LOG_LEVEL: Logging level (default: info)
//
// Provider (Evolution API):
//   - EVOLUTION_API_URL: Provider base URL (default: http://localhost:8080)
//   - EVOLUTION_API_KEY: Provider API key sent on every call
//   - EVOLUTION_TIMEOUT: Provider request timeout (default: 30s)
//   - EVOLUTION_RATE_LIMIT: Max requests per second to the provider (0 disables, default: 0)
//
// Security:
//   - JWT_SECRET: JWT signing secret (required, minimum 32 characters)
//   - JWT_EXPIRY: Token lifetime (default: 24h)
//   - ADMIN_API_KEY: Key guarding token issuance (empty disables the endpoint)
//
// Sink (Redis, optional — log-only sink is used when unset):
//   - REDIS_ADDRESS: Redis server address
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//
// Rate Limiting (per traffic class, points per 60s window):
//   - RATE_LIMIT_ENABLED: Enable rate limiting (default: true)
//   - RATE_LIMIT_GENERAL: General API budget (default: 100)
//   - RATE_LIMIT_WEBHOOK: Webhook ingestion budget (default: 1000)
//   - RATE_LIMIT_MESSAGE: Message send budget (default: 50)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the gateway. Load it with Load()
// and call Validate() before use.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Provider configuration
	EvolutionURL     string        // Evolution API base URL
	EvolutionAPIKey  string        // API key sent as the apikey header
	EvolutionTimeout time.Duration // Timeout for provider calls
	EvolutionRPS     float64       // Courtesy throttle toward the provider, 0 disables

	// JWT authentication configuration
	JWTSecret   string        // Secret key for JWT token signing (required)
	JWTExpiry   time.Duration // Issued token lifetime
	AdminAPIKey string        // Key required by POST /auth/token, empty disables issuance

	// Sink configuration (optional)
	RedisAddress  string // Redis server address (host:port), empty disables the Redis sink
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)

	// Rate limiting configuration
	RateLimitEnabled bool   // Whether rate limiting is enabled
	RateLimitGeneral string // General class points per window
	RateLimitWebhook string // Webhook class points per window
	RateLimitMessage string // Message-send class points per window
}

// Load creates a new Config instance with values loaded from environment
// variables, falling back to defaults. It does not validate — call Validate()
// on the returned Config.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3001"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		EvolutionURL:     getEnv("EVOLUTION_API_URL", "http://localhost:8080"),
		EvolutionAPIKey:  getEnv("EVOLUTION_API_KEY", ""),
		EvolutionTimeout: getDurationEnv("EVOLUTION_TIMEOUT", 30*time.Second),
		EvolutionRPS:     getFloatEnv("EVOLUTION_RATE_LIMIT", 0),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTExpiry:   getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitGeneral: getEnv("RATE_LIMIT_GENERAL", "100"),
		RateLimitWebhook: getEnv("RATE_LIMIT_WEBHOOK", "1000"),
		RateLimitMessage: getEnv("RATE_LIMIT_MESSAGE", "50"),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getFloatEnv retrieves a float environment variable value or returns a default value.
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns a default value.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields, field formats and value ranges. The
// application should call this after Load and before starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.EvolutionURL == "" {
		return fmt.Errorf("EVOLUTION_API_URL must not be empty")
	}

	if c.EvolutionTimeout <= 0 {
		return fmt.Errorf("EVOLUTION_TIMEOUT must be positive")
	}

	if c.EvolutionRPS < 0 {
		return fmt.Errorf("EVOLUTION_RATE_LIMIT must not be negative")
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	if c.RateLimitEnabled {
		for name, value := range map[string]string{
			"RATE_LIMIT_GENERAL": c.RateLimitGeneral,
			"RATE_LIMIT_WEBHOOK": c.RateLimitWebhook,
			"RATE_LIMIT_MESSAGE": c.RateLimitMessage,
		} {
			if points, err := strconv.Atoi(value); err != nil || points < 1 {
				return fmt.Errorf("%s must be a positive number", name)
			}
		}
	}

	return nil
}

// RateLimitPoints parses the configured per-class budgets, which Validate has
// already checked for well-formedness.
func (c *Config) RateLimitPoints() (general, webhook, message int) {
	general, _ = strconv.Atoi(c.RateLimitGeneral)
	webhook, _ = strconv.Atoi(c.RateLimitWebhook)
	message, _ = strconv.Atoi(c.RateLimitMessage)
	return general, webhook, message
}
