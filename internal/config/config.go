package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Host        string
	Environment string // "development" or "production"
	CORSOrigins string

	// Event bus
	EventHistorySize int

	// Orchestration
	ModuleTimeout          time.Duration // per-invocation bound during fan-out
	MaxParallelInvocations int

	// Shared context
	InsightCacheTTL time.Duration

	// Relevance routing
	RoutingConfigPath string // optional YAML override, hot-reloaded when set

	// Built-in example modules
	ExampleModules bool

	// Maintenance
	StatsSnapshotInterval time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8085"),
		Host:        getEnv("HOST", "0.0.0.0"),
		Environment: strings.ToLower(getEnv("ENVIRONMENT", "development")),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		EventHistorySize: getIntEnv("EVENT_HISTORY_SIZE", 1000),

		ModuleTimeout:          getDurationEnv("MODULE_TIMEOUT", 5*time.Second),
		MaxParallelInvocations: getIntEnv("MAX_PARALLEL_INVOCATIONS", 16),

		InsightCacheTTL: getDurationEnv("INSIGHT_CACHE_TTL", time.Hour),

		RoutingConfigPath: getEnv("ROUTING_CONFIG", ""),

		ExampleModules: getBoolEnv("EXAMPLE_MODULES", true),

		StatsSnapshotInterval: getDurationEnv("STATS_SNAPSHOT_INTERVAL", 5*time.Minute),
	}
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
