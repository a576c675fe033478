package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	APIBaseURL string
	APITimeout time.Duration
	LogLevel   string
	LogFormat  string
	// DefaultTestDuration is only used when the backend does not report a test
	// length. It is a stand-in for demo use, never a source of truth.
	DefaultTestDuration time.Duration
	KioskPort           string
	GinMode             string
	RedisURL            string
	FixtureFile         string
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		APIBaseURL:          strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		APITimeout:          time.Duration(getEnvInt("API_TIMEOUT_SECONDS", 10)) * time.Second,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "pretty"),
		DefaultTestDuration: time.Duration(getEnvInt("DEFAULT_TEST_DURATION_MINUTES", 60)) * time.Minute,
		KioskPort:           getEnv("KIOSK_PORT", "8081"),
		GinMode:             getEnv("GIN_MODE", "debug"),
		RedisURL:            getEnv("REDIS_URL", ""),
		FixtureFile:         getEnv("FIXTURE_FILE", ""),
		AllowedOrigins:      parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	// Every numeric setting is a timeout or a duration; zero would mean none.
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
