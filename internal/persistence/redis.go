package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/hotel-booking/internal/config"
)

const defaultRedisOpTimeout = 3 * time.Second

// Redis holds the client backing the refresh token store together with the
// key prefix its records live under.
type Redis struct {
	Client    *redis.Client
	KeyPrefix string
	addr      string
}

// NewRedis builds a client whose dial, read and write timeouts follow
// opTimeout. An unreachable server is logged, not fatal; store calls surface
// the failure.
func NewRedis(ctx context.Context, cfg config.RedisConfig, opTimeout time.Duration, logger *zap.Logger) *Redis {
	if opTimeout <= 0 {
		opTimeout = defaultRedisOpTimeout
	}
	r := &Redis{
		Client:    redis.NewClient(redisOptions(cfg, opTimeout)),
		KeyPrefix: cfg.KeyPrefix,
		addr:      cfg.Addr,
	}

	fields := []zap.Field{
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("key_prefix", cfg.KeyPrefix),
	}
	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		logger.Warn("refresh token redis unreachable", append(fields, zap.Error(err))...)
	} else {
		logger.Info("refresh token redis connected", fields...)
	}
	return r
}

func redisOptions(cfg config.RedisConfig, opTimeout time.Duration) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping reports whether the refresh token keyspace is reachable. Errors name
// the server address for the health endpoint.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", r.addr, err)
	}
	return nil
}
