package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/hotel-booking/internal/domain"
)

const (
	fieldToken    = "token"
	fieldStoredAt = "stored_at"
)

const swapRefreshTokenScript = `
local current = redis.call("HGET", KEYS[1], "token")
if current ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "token", ARGV[2], "stored_at", ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`

var swapRefreshTokenLua = redis.NewScript(swapRefreshTokenScript)

type redisRefreshTokenStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRefreshTokenStore returns a Redis-backed store. Each record is a hash
// under "<prefix>:<subject>" that expires ttl after its last write.
func NewRedisRefreshTokenStore(client *redis.Client, prefix string, ttl time.Duration) RefreshTokenStore {
	return &redisRefreshTokenStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *redisRefreshTokenStore) key(subject string) string {
	return s.prefix + ":" + subject
}

func (s *redisRefreshTokenStore) Put(ctx context.Context, subject, token string, now time.Time) error {
	key := s.key(subject)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldToken, token, fieldStoredAt, now.UTC().Format(time.RFC3339Nano))
		if s.ttl > 0 {
			pipe.PExpire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return storageError("put refresh token", err)
	}
	return nil
}

func (s *redisRefreshTokenStore) Get(ctx context.Context, subject string) (*domain.RefreshTokenRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, storageError("get refresh token", err)
	}
	if len(fields) == 0 {
		return nil, ErrRefreshTokenNotFound
	}

	token, ok := fields[fieldToken]
	if !ok || token == "" {
		return nil, ErrRefreshTokenCorrupt
	}
	storedAt, err := time.Parse(time.RFC3339Nano, fields[fieldStoredAt])
	if err != nil {
		return nil, ErrRefreshTokenCorrupt
	}

	return &domain.RefreshTokenRecord{Subject: subject, Token: token, StoredAt: storedAt}, nil
}

func (s *redisRefreshTokenStore) Delete(ctx context.Context, subject string) error {
	if err := s.client.Del(ctx, s.key(subject)).Err(); err != nil {
		return storageError("delete refresh token", err)
	}
	return nil
}

func (s *redisRefreshTokenStore) Swap(ctx context.Context, subject, expected, next string, now time.Time) (bool, error) {
	swapped, err := swapRefreshTokenLua.Run(ctx, s.client,
		[]string{s.key(subject)},
		expected, next, now.UTC().Format(time.RFC3339Nano), s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, storageError("swap refresh token", err)
	}
	return swapped == 1, nil
}
