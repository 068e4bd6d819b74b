package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/barn/onboarding/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// defaultDedupeKeyPrefix namespaces webhook delivery IDs in Redis
const defaultDedupeKeyPrefix = "webhook:dedupe:"

// RedisIdempotencyStore implements the dedupe ledger on Redis, for
// deployments where more than one instance receives webhook traffic.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisIdempotencyStore creates a Redis-backed dedupe ledger
func NewRedisIdempotencyStore(cfg RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: defaultDedupeKeyPrefix,
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a ledger over an existing client
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultDedupeKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed records a delivery ID with a TTL. SETNX makes the check and
// the write one atomic step, so exactly one instance wins a concurrent
// delivery of the same event.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	newlyMarked, err := s.client.SetNX(ctx, s.keyPrefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return newlyMarked, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}
