// Package config loads process settings from the environment and backend
// definitions from a YAML or TOML file.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all process-level configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Backends file (YAML or TOML)
	ConfigPath string

	// Per-request deadline enforced by the gateway
	HTTPTimeout time.Duration

	// Default response cache TTL for backends that do not set one
	CacheTTL time.Duration

	// Endpoint health refresh (cron spec or @every)
	HealthRefresh string

	// Observability
	OTLPEndpoint   string
	TracingEnabled bool

	// Gateway auth; empty disables it
	JWTSecret string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ConfigPath: getEnv("NETGEN_CONFIG", "netgen.yaml"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 2*time.Minute),
		CacheTTL:    getEnvDuration("CACHE_TTL", DefaultCacheTTL),

		HealthRefresh: getEnv("HEALTH_REFRESH_SCHEDULE", "@every 30s"),

		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),

		JWTSecret: getEnv("GATEWAY_JWT_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
