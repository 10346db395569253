package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Storage. Empty path runs the in-memory store (dev/tests);
	// otherwise the SQLite store at this path.
	DBPath string

	// Audit log retention: oldest entries beyond this cap are dropped.
	AuditRetention int

	// Compliance reporting
	ReportCacheTTL    time.Duration
	ReportConcurrency int

	// Observability
	OTLPEndpoint string

	// JWT / actor identity (tokens are issued by the external auth
	// service; this subsystem only validates them)
	JWTSecret string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBPath: getEnv("TRUST_DB_PATH", "trustledger.db"),

		AuditRetention: getEnvInt("AUDIT_RETENTION", 100000),

		ReportCacheTTL:    getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),
		ReportConcurrency: getEnvInt("REPORT_CONCURRENCY", 8),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret: getEnv("JWT_SECRET", "trustd-default-dev-secret-change-me"),
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
