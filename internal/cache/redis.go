// internal/cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bloodbank/internal/config"
)

const (
	sessionKeyPrefix     = "session:"
	idempotencyKeyPrefix = "idempotency:"
)

// ErrMiss is returned when a key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// Connect builds a Redis client and waits for the server to answer a PING.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ping := func() (struct{}, error) {
		return struct{}{}, client.Ping(ctx).Err()
	}
	_, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(6),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("redis not ready, retrying", zap.Error(err), zap.Duration("wait", wait))
		}),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Store keeps server-side sessions and idempotency keys in Redis.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// SaveSession stores an encoded session under its id until ttl elapses.
func (s *Store) SaveSession(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKeyPrefix+id, data, ttl).Err()
}

// LoadSession returns the encoded session or ErrMiss.
func (s *Store) LoadSession(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return data, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}

// ClaimIdempotencyKey records key with SET NX. It reports false when the key
// was already claimed by an earlier request.
func (s *Store) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}

// ReleaseIdempotencyKey forgets a claim so that a failed request can be retried.
func (s *Store) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (s *Store) PingContext(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
