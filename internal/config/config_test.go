package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:             "3001",
		LogLevel:         "info",
		EvolutionURL:     "http://localhost:8080",
		EvolutionTimeout: 30 * time.Second,
		JWTSecret:        strings.Repeat("s", 32),
		JWTExpiry:        24 * time.Hour,
		RedisDB:          "0",
		RateLimitEnabled: true,
		RateLimitGeneral: "100",
		RateLimitWebhook: "1000",
		RateLimitMessage: "50",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.EvolutionURL)
	assert.Equal(t, 30*time.Second, cfg.EvolutionTimeout)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, "100", cfg.RateLimitGeneral)
	assert.Equal(t, "1000", cfg.RateLimitWebhook)
	assert.Equal(t, "50", cfg.RateLimitMessage)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("EVOLUTION_API_URL", "https://evo.example.com")
	t.Setenv("EVOLUTION_TIMEOUT", "5s")
	t.Setenv("EVOLUTION_RATE_LIMIT", "2.5")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://evo.example.com", cfg.EvolutionURL)
	assert.Equal(t, 5*time.Second, cfg.EvolutionTimeout)
	assert.Equal(t, 2.5, cfg.EvolutionRPS)
	assert.False(t, cfg.RateLimitEnabled)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("EVOLUTION_TIMEOUT", "not-a-duration")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.EvolutionTimeout)
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("missing JWT secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = ""
		assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
	})

	t.Run("short JWT secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = "too-short"
		assert.ErrorContains(t, cfg.Validate(), "32 characters")
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Port = "99999"
		assert.ErrorContains(t, cfg.Validate(), "PORT")
	})

	t.Run("empty provider URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.EvolutionURL = ""
		assert.ErrorContains(t, cfg.Validate(), "EVOLUTION_API_URL")
	})

	t.Run("non-positive provider timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.EvolutionTimeout = 0
		assert.ErrorContains(t, cfg.Validate(), "EVOLUTION_TIMEOUT")
	})

	t.Run("negative provider rate limit", func(t *testing.T) {
		cfg := validConfig()
		cfg.EvolutionRPS = -1
		assert.ErrorContains(t, cfg.Validate(), "EVOLUTION_RATE_LIMIT")
	})

	t.Run("invalid redis db", func(t *testing.T) {
		cfg := validConfig()
		cfg.RedisAddress = "localhost:6379"
		cfg.RedisDB = "16"
		assert.ErrorContains(t, cfg.Validate(), "REDIS_DB")
	})

	t.Run("invalid rate budget", func(t *testing.T) {
		cfg := validConfig()
		cfg.RateLimitMessage = "0"
		assert.ErrorContains(t, cfg.Validate(), "RATE_LIMIT_MESSAGE")
	})

	t.Run("rate budgets ignored when disabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.RateLimitEnabled = false
		cfg.RateLimitMessage = "bogus"
		assert.NoError(t, cfg.Validate())
	})
}

func TestRateLimitPoints(t *testing.T) {
	cfg := validConfig()
	general, webhook, message := cfg.RateLimitPoints()
	assert.Equal(t, 100, general)
	assert.Equal(t, 1000, webhook)
	assert.Equal(t, 50, message)
}
