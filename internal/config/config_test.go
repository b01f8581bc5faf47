package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_SECONDS", "")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL_SECONDS", "")
	t.Setenv("AUTH_REFRESH_STORE_BACKEND", "")
	t.Setenv("AUTH_ROTATE_REFRESH_TOKENS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 900*time.Second, cfg.Auth.AccessTTL())
	assert.Equal(t, 604800*time.Second, cfg.Auth.RefreshTTL())
	assert.True(t, cfg.Auth.RotateRefreshTokens)
	assert.Equal(t, StoreBackendRedis, cfg.Auth.RefreshStoreBackend)
	assert.Equal(t, 3*time.Second, cfg.Auth.StoreTimeout())
	assert.Equal(t, "refresh_token", cfg.Redis.KeyPrefix)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("AUTH_JWT_SECRET", "s3cr3t")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_SECONDS", "60")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL_SECONDS", "3600")
	t.Setenv("AUTH_ROTATE_REFRESH_TOKENS", "false")
	t.Setenv("AUTH_REFRESH_STORE_BACKEND", "postgres")
	t.Setenv("AUTH_STORE_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.App.Addr())
	assert.Equal(t, "s3cr3t", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Minute, cfg.Auth.AccessTTL())
	assert.Equal(t, time.Hour, cfg.Auth.RefreshTTL())
	assert.False(t, cfg.Auth.RotateRefreshTokens)
	assert.Equal(t, StoreBackendPostgres, cfg.Auth.RefreshStoreBackend)
	assert.Zero(t, cfg.Auth.StoreTimeout())
}

func TestLoadInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Auth: AuthConfig{
			JWTSecret:              "secret",
			AccessTokenTTLSeconds:  900,
			RefreshTokenTTLSeconds: 604800,
			RefreshStoreBackend:    StoreBackendMemory,
		}}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"empty secret":      func(c *Config) { c.Auth.JWTSecret = "" },
		"zero access ttl":   func(c *Config) { c.Auth.AccessTokenTTLSeconds = 0 },
		"negative refresh":  func(c *Config) { c.Auth.RefreshTokenTTLSeconds = -1 },
		"access >= refresh": func(c *Config) { c.Auth.AccessTokenTTLSeconds = 604800 },
		"unknown backend":   func(c *Config) { c.Auth.RefreshStoreBackend = "etcd" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	assert.Zero(t, AppConfig{}.RequestTimeout())
	assert.Equal(t, 5*time.Second, AppConfig{RequestTimeoutSeconds: 5}.RequestTimeout())
}

func TestAuditWebhookDefaults(t *testing.T) {
	t.Setenv("AUDIT_WEBHOOK_URL", "")
	t.Setenv("AUDIT_WEBHOOK_TIMEOUT_SECONDS", "")
	t.Setenv("AUDIT_WEBHOOK_MAX_RETRIES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Audit.WebhookURL)
	assert.Equal(t, 5*time.Second, cfg.Audit.WebhookTimeout())
	assert.Equal(t, 3, cfg.Audit.WebhookMaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Audit.WebhookRetryBase())
	assert.Equal(t, 256, cfg.Audit.WebhookQueueSize)

	assert.Equal(t, 5*time.Second, AuditConfig{}.WebhookTimeout())
	assert.Equal(t, 200*time.Millisecond, AuditConfig{WebhookRetryBaseMillis: -1}.WebhookRetryBase())
}
