// Package cache wraps the Redis client used for short-lived shared state.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"propflow/internal/common/middleware"
)

// Config holds Redis configuration
type Config struct {
	URL            string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	IdempotencyTTL time.Duration `envconfig:"REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	logger.Info("redis connection established", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

// IdempotencyStore keeps idempotent responses in Redis.
type IdempotencyStore struct {
	client redis.Cmdable
	prefix string
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose keys start with prefix.
func NewIdempotencyStore(client redis.Cmdable, prefix string) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: prefix}
}

// Get returns a stored response.
func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Claim reserves key with an empty placeholder.
func (s *IdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, "", ttl).Result()
}

// Set stores the response of a claimed key.
func (s *IdempotencyStore) Set(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, response, ttl).Err()
}

// Release deletes a claim.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
