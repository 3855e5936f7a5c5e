package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Storage drivers accepted by AGENTBOARD_DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Server     ServerConfig
	Stream     StreamConfig
	Ingest     IngestConfig
	Retention  RetentionConfig
	SelfHosted bool
}

// DatabaseConfig selects the event store. Host through MaxConns only apply to
// the postgres driver.
type DatabaseConfig struct {
	Driver     string
	SQLitePath string
	Host       string
	Port       int
	User       string
	Password   string //nolint:gosec // G117: DB connection config
	DBName     string
	SSLMode    string
	MaxConns   int
}

// RedisConfig holds Redis connection settings. An empty Addr selects the
// in-process broker.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// StreamConfig tunes the per-connection event loop.
type StreamConfig struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	QueryTimeout      time.Duration
	BatchLimit        int
}

// IngestConfig holds the per-project ingestion rate limit.
type IngestConfig struct {
	Rate  float64
	Burst int
}

// RetentionConfig controls pruning of old rows. A zero MaxAge keeps everything.
type RetentionConfig struct {
	MaxAge   time.Duration
	Interval time.Duration
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("AGENTBOARD_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("AGENTBOARD_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("AGENTBOARD_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("AGENTBOARD_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("AGENTBOARD_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	pollInterval, err := getEnvDuration("AGENTBOARD_STREAM_POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	heartbeat, err := getEnvDuration("AGENTBOARD_STREAM_HEARTBEAT", 25*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	batchLimit, err := getEnvInt("AGENTBOARD_STREAM_BATCH_LIMIT", 500)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	queryTimeout, err := getEnvDuration("AGENTBOARD_STREAM_QUERY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ingestRate, err := getEnvFloat("AGENTBOARD_INGEST_RATE", 50)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ingestBurst, err := getEnvInt("AGENTBOARD_INGEST_BURST", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	retentionMaxAge, err := getEnvDuration("AGENTBOARD_RETENTION_MAX_AGE", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	retentionInterval, err := getEnvDuration("AGENTBOARD_RETENTION_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("AGENTBOARD_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("AGENTBOARD_CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("AGENTBOARD_DB_DRIVER", DriverSQLite)),
			SQLitePath: getEnv("AGENTBOARD_SQLITE_PATH", "agentboard.db"),
			Host:       getEnv("AGENTBOARD_DB_HOST", "localhost"),
			Port:       dbPort,
			User:       getEnv("AGENTBOARD_DB_USER", "agentboard"),
			Password:   getEnv("AGENTBOARD_DB_PASSWORD", ""),
			DBName:     getEnv("AGENTBOARD_DB_NAME", "agentboard"),
			SSLMode:    getEnv("AGENTBOARD_DB_SSLMODE", "disable"),
			MaxConns:   dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("AGENTBOARD_REDIS_ADDR", ""),
			Password: getEnv("AGENTBOARD_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Server: ServerConfig{
			Addr:         getEnv("AGENTBOARD_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Stream: StreamConfig{
			PollInterval:      pollInterval,
			HeartbeatInterval: heartbeat,
			QueryTimeout:      queryTimeout,
			BatchLimit:        batchLimit,
		},
		Ingest: IngestConfig{
			Rate:  ingestRate,
			Burst: ingestBurst,
		},
		Retention: RetentionConfig{
			MaxAge:   retentionMaxAge,
			Interval: retentionInterval,
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("AGENTBOARD_SQLITE_PATH is required for the %s driver", DriverSQLite)
		}
	case DriverPostgres:
		// DB SSL mode warning for non-self-hosted deployments.
		if c.Database.SSLMode == "disable" && !c.SelfHosted {
			log.Warn().Msg("AGENTBOARD_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
	default:
		return fmt.Errorf("AGENTBOARD_DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("AGENTBOARD_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("AGENTBOARD_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("AGENTBOARD_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("AGENTBOARD_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Stream.PollInterval <= 0 {
		return fmt.Errorf("AGENTBOARD_STREAM_POLL_INTERVAL must be positive, got %s", c.Stream.PollInterval)
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("AGENTBOARD_STREAM_HEARTBEAT must be positive, got %s", c.Stream.HeartbeatInterval)
	}
	if c.Stream.QueryTimeout <= 0 {
		return fmt.Errorf("AGENTBOARD_STREAM_QUERY_TIMEOUT must be positive, got %s", c.Stream.QueryTimeout)
	}
	if c.Stream.BatchLimit < 1 {
		return fmt.Errorf("AGENTBOARD_STREAM_BATCH_LIMIT must be >= 1, got %d", c.Stream.BatchLimit)
	}
	if c.Ingest.Rate <= 0 {
		return fmt.Errorf("AGENTBOARD_INGEST_RATE must be positive, got %g", c.Ingest.Rate)
	}
	if c.Ingest.Burst < 1 {
		return fmt.Errorf("AGENTBOARD_INGEST_BURST must be >= 1, got %d", c.Ingest.Burst)
	}
	if c.Retention.MaxAge < 0 {
		return fmt.Errorf("AGENTBOARD_RETENTION_MAX_AGE must not be negative, got %s", c.Retention.MaxAge)
	}
	if c.Retention.Interval <= 0 {
		return fmt.Errorf("AGENTBOARD_RETENTION_INTERVAL must be positive, got %s", c.Retention.Interval)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
