package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guildpulse/guildpulse/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Redis configuration (queue backend, session store, cache)
	Redis RedisConfig

	// Queue retry policy
	Queue QueueConfig

	// Retention windows
	Retention RetentionConfig

	// Cron expressions for the scheduler triggers
	Schedule ScheduleConfig

	// Worker pool configuration
	Worker WorkerConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// DatabaseConfig holds durable store configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	OpTimeout    time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// Addr returns the host:port address for the Redis client
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// QueueConfig holds queue retry policy configuration
type QueueConfig struct {
	KeyPrefix         string
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// RetentionConfig holds data retention windows
type RetentionConfig struct {
	RawEventDays   int
	DailyStatsDays int
	SessionTTL     time.Duration
}

// ScheduleConfig holds the cron expressions for the six scheduler triggers
type ScheduleConfig struct {
	FiveMinute    string
	Hourly        string
	Daily         string
	RawCleanup    string
	DailyCleanup  string
	MonthlyRollup string
}

// WorkerConfig holds queue worker pool configuration
type WorkerConfig struct {
	Count      int
	JobTimeout time.Duration
	HealthPort string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:          getEnv("GUILDPULSE_DATABASE_URL", "postgres://localhost/guildpulse?sslmode=disable"),
			MaxOpenConns: getEnvInt("GUILDPULSE_DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvInt("GUILDPULSE_DATABASE_MAX_IDLE_CONNS", 5),
			OpTimeout:    getEnvDuration("GUILDPULSE_DATABASE_OP_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("GUILDPULSE_REDIS_HOST", "localhost"),
			Port:     getEnv("GUILDPULSE_REDIS_PORT", "6379"),
			Password: getEnv("GUILDPULSE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("GUILDPULSE_REDIS_DB", 0),
			PoolSize: getEnvInt("GUILDPULSE_REDIS_POOL_SIZE", 10),
		},
		Queue: QueueConfig{
			KeyPrefix:         getEnv("GUILDPULSE_QUEUE_KEY_PREFIX", "guildpulse"),
			MaxAttempts:       getEnvInt("GUILDPULSE_QUEUE_MAX_ATTEMPTS", 3),
			InitialDelay:      getEnvDuration("GUILDPULSE_QUEUE_INITIAL_DELAY", 1*time.Second),
			MaxDelay:          getEnvDuration("GUILDPULSE_QUEUE_MAX_DELAY", 30*time.Second),
			BackoffMultiplier: getEnvFloat("GUILDPULSE_QUEUE_BACKOFF_MULTIPLIER", 2.0),
		},
		Retention: RetentionConfig{
			RawEventDays:   getEnvInt("GUILDPULSE_RETENTION_RAW_EVENT_DAYS", 30),
			DailyStatsDays: getEnvInt("GUILDPULSE_RETENTION_DAILY_STATS_DAYS", 90),
			SessionTTL:     getEnvDuration("GUILDPULSE_SESSION_TTL", 24*time.Hour),
		},
		Schedule: ScheduleConfig{
			FiveMinute:    getEnv("GUILDPULSE_SCHEDULE_FIVE_MINUTE", "*/5 * * * *"),
			Hourly:        getEnv("GUILDPULSE_SCHEDULE_HOURLY", "0 * * * *"),
			Daily:         getEnv("GUILDPULSE_SCHEDULE_DAILY", "0 0 * * *"),
			RawCleanup:    getEnv("GUILDPULSE_SCHEDULE_RAW_CLEANUP", "0 2 * * *"),
			DailyCleanup:  getEnv("GUILDPULSE_SCHEDULE_DAILY_CLEANUP", "0 3 * * *"),
			MonthlyRollup: getEnv("GUILDPULSE_SCHEDULE_MONTHLY_ROLLUP", "0 4 1 * *"),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("GUILDPULSE_WORKER_COUNT", 8),
			JobTimeout: getEnvDuration("GUILDPULSE_WORKER_JOB_TIMEOUT", 60*time.Second),
			HealthPort: getEnv("GUILDPULSE_HEALTH_PORT", "9090"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("GUILDPULSE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("GUILDPULSE_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Redis.Host == "" || c.Redis.Port == "" {
		return fmt.Errorf("redis host and port are required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis db index must be non-negative")
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue max attempts must be positive")
	}
	if c.Queue.InitialDelay <= 0 {
		return fmt.Errorf("queue initial delay must be positive")
	}
	if c.Queue.BackoffMultiplier <= 1.0 {
		return fmt.Errorf("queue backoff multiplier must be greater than 1")
	}
	if c.Retention.RawEventDays <= 0 || c.Retention.DailyStatsDays <= 0 {
		return fmt.Errorf("retention windows must be positive")
	}
	if c.Retention.DailyStatsDays < c.Retention.RawEventDays {
		return fmt.Errorf("daily stats retention must not be shorter than raw event retention")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job timeout must be positive")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
