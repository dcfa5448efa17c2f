// Package config loads process configuration from environment variables,
// adapted from the teacher's flat env-var config loader and expanded to
// cover every tunable the engine, dashboard, relay, control API, and
// incident log need.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the whole process's configuration.
type Config struct {
	Engine     EngineConfig
	Dashboard  DashboardConfig
	NATS       NATSConfig
	Control    ControlConfig
	IncidentDB DatabaseConfig
	Tracing    TracingConfig
	Log        LogConfig
}

// EngineConfig configures the core bus/source/pipeline engine.
type EngineConfig struct {
	StressMode          bool
	PerSourceQueueSize  int
	MergedQueueSize     int
	DropOnFull          bool
	WindowSize          time.Duration
	ArtificialDelay     time.Duration
	LogBaseInterval     time.Duration
	LogBurstInterval    time.Duration
	LogBurstProbability float64
	EventRateLimit      time.Duration
	MetricsInterval     time.Duration
	RandomSeed          int64
}

// DashboardConfig configures the websocket dashboard server.
type DashboardConfig struct {
	Enabled bool
	Addr    string
}

// NATSConfig configures the optional JetStream relay.
type NATSConfig struct {
	Enabled         bool
	URL             string
	StreamRetention time.Duration
}

// ControlConfig configures the start/stop/status HTTP API.
type ControlConfig struct {
	Enabled   bool
	Addr      string
	JWTSecret string
	AccessTTL time.Duration
	AdminUser string
	AdminPass string

	TLSEnabled    bool
	CertFile      string
	KeyFile       string
	TLSMinVersion string
}

// DatabaseConfig holds Postgres connection settings for the incident log.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

// LogConfig holds platformlog settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables, falling back to
// reference defaults for anything unset.
func Load() *Config {
	return &Config{
		Engine: EngineConfig{
			StressMode:          getEnvBool("ENGINE_STRESS_MODE", false),
			PerSourceQueueSize:  getEnvInt("ENGINE_PER_SOURCE_QUEUE", 64),
			MergedQueueSize:     getEnvInt("ENGINE_MERGED_QUEUE", 256),
			DropOnFull:          getEnvBool("ENGINE_DROP_ON_FULL", true),
			WindowSize:          getEnvDuration("ENGINE_WINDOW_SIZE", 5*time.Second),
			ArtificialDelay:     getEnvDuration("ENGINE_ARTIFICIAL_DELAY", 0),
			LogBaseInterval:     getEnvDuration("ENGINE_LOG_BASE_INTERVAL", 1500*time.Millisecond),
			LogBurstInterval:    getEnvDuration("ENGINE_LOG_BURST_INTERVAL", 200*time.Millisecond),
			LogBurstProbability: getEnvFloat("ENGINE_LOG_BURST_PROBABILITY", 0.1),
			EventRateLimit:      getEnvDuration("ENGINE_EVENT_RATE_LIMIT", 100*time.Millisecond),
			MetricsInterval:     getEnvDuration("ENGINE_METRICS_INTERVAL", 2*time.Second),
			RandomSeed:          int64(getEnvInt("ENGINE_RANDOM_SEED", 1)),
		},
		Dashboard: DashboardConfig{
			Enabled: getEnvBool("DASHBOARD_ENABLED", true),
			Addr:    getEnv("DASHBOARD_ADDR", ":8090"),
		},
		NATS: NATSConfig{
			Enabled:         getEnvBool("NATS_ENABLED", false),
			URL:             getEnv("NATS_URL", "nats://localhost:4222"),
			StreamRetention: getEnvDuration("NATS_STREAM_RETENTION", 24*time.Hour),
		},
		Control: ControlConfig{
			Enabled:   getEnvBool("CONTROL_ENABLED", true),
			Addr:      getEnv("CONTROL_ADDR", ":8091"),
			JWTSecret: getEnv("CONTROL_JWT_SECRET", ""),
			AccessTTL: getEnvDuration("CONTROL_ACCESS_TTL", time.Hour),
			AdminUser:  getEnv("CONTROL_ADMIN_USER", "admin"),
			AdminPass:  getEnv("CONTROL_ADMIN_PASSWORD", "admin123"),
			TLSEnabled:    getEnvBool("CONTROL_TLS_ENABLED", false),
			CertFile:      getEnv("CONTROL_TLS_CERT_FILE", ""),
			KeyFile:       getEnv("CONTROL_TLS_KEY_FILE", ""),
			TLSMinVersion: getEnv("CONTROL_TLS_MIN_VERSION", "1.2"),
		},
		IncidentDB: DatabaseConfig{
			Enabled:  getEnvBool("INCIDENTDB_ENABLED", false),
			Host:     getEnv("INCIDENTDB_HOST", "localhost"),
			Port:     getEnvInt("INCIDENTDB_PORT", 5432),
			User:     getEnv("INCIDENTDB_USER", "pulsecore"),
			Password: getEnv("INCIDENTDB_PASSWORD", "pulsecore"),
			Database: getEnv("INCIDENTDB_NAME", "pulsecore"),
			SSLMode:  getEnv("INCIDENTDB_SSLMODE", "disable"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			ServiceName:  getEnv("SERVICE_NAME", "pulsecore"),
			OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4318"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
