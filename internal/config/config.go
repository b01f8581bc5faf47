package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Refresh token store backends.
const (
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"
	StoreBackendMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	SQLite   SQLiteConfig
	Logger   LoggerConfig
	Sentry   SentryConfig
	Auth     AuthConfig
	Audit    AuditConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// SQLiteConfig locates the SQLite database used by the sqlite store backend.
type SQLiteConfig struct {
	Path string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string
	Environment string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLSeconds  int
	RefreshTokenTTLSeconds int
	RotateRefreshTokens    bool
	StoreTimeoutSeconds    int
	BcryptCost             int
	RefreshStoreBackend    string
}

// AuditConfig holds the optional audit webhook. Events are POSTed as JSON to
// WebhookURL when it is set.
type AuditConfig struct {
	WebhookURL             string
	WebhookTimeoutSeconds  int
	WebhookMaxRetries      int
	WebhookRetryBaseMillis int
	WebhookQueueSize       int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "hotel-booking-auth"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "refresh_token"),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "refresh_tokens.db"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Sentry: SentryConfig{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: getEnv("SENTRY_ENVIRONMENT", getEnv("APP_ENV", "development")),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLSeconds:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_SECONDS", 900),
			RefreshTokenTTLSeconds: getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_SECONDS", 604800),
			RotateRefreshTokens:    getEnvAsBool("AUTH_ROTATE_REFRESH_TOKENS", true),
			StoreTimeoutSeconds:    getEnvAsInt("AUTH_STORE_TIMEOUT_SECONDS", 3),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			RefreshStoreBackend:    getEnv("AUTH_REFRESH_STORE_BACKEND", StoreBackendRedis),
		},
		Audit: AuditConfig{
			WebhookURL:             getEnv("AUDIT_WEBHOOK_URL", ""),
			WebhookTimeoutSeconds:  getEnvAsInt("AUDIT_WEBHOOK_TIMEOUT_SECONDS", 5),
			WebhookMaxRetries:      getEnvAsInt("AUDIT_WEBHOOK_MAX_RETRIES", 3),
			WebhookRetryBaseMillis: getEnvAsInt("AUDIT_WEBHOOK_RETRY_BASE_MS", 200),
			WebhookQueueSize:       getEnvAsInt("AUDIT_WEBHOOK_QUEUE_SIZE", 256),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the token lifecycle cannot run with.
func (c *Config) Validate() error {
	a := c.Auth
	if a.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET must not be empty")
	}
	if a.AccessTokenTTLSeconds <= 0 || a.RefreshTokenTTLSeconds <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if a.AccessTokenTTLSeconds >= a.RefreshTokenTTLSeconds {
		return fmt.Errorf("access token TTL (%ds) must be shorter than refresh token TTL (%ds)",
			a.AccessTokenTTLSeconds, a.RefreshTokenTTLSeconds)
	}
	switch a.RefreshStoreBackend {
	case StoreBackendRedis, StoreBackendPostgres, StoreBackendSQLite, StoreBackendMemory:
	default:
		return fmt.Errorf("unknown AUTH_REFRESH_STORE_BACKEND %q", a.RefreshStoreBackend)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTTL returns the access token lifetime.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLSeconds) * time.Second
}

// RefreshTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLSeconds) * time.Second
}

// WebhookTimeout bounds a single webhook POST.
func (a AuditConfig) WebhookTimeout() time.Duration {
	if a.WebhookTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(a.WebhookTimeoutSeconds) * time.Second
}

// WebhookRetryBase is the first backoff delay between webhook attempts.
func (a AuditConfig) WebhookRetryBase() time.Duration {
	if a.WebhookRetryBaseMillis <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(a.WebhookRetryBaseMillis) * time.Millisecond
}

// StoreTimeout bounds a single store call. Zero disables the bound.
func (a AuthConfig) StoreTimeout() time.Duration {
	if a.StoreTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.StoreTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
