package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// RedisEventStore implements EventDedupStore using Redis. Suitable for
// distributed deployments where multiple instances share webhook
// delivery state.
type RedisEventStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisEventStore creates a new Redis-backed event dedup store
func NewRedisEventStore(cfg RedisConfig) (*RedisEventStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisEventStore{
		client:    client,
		keyPrefix: "webhook:event:",
	}, nil
}

// NewRedisEventStoreWithClient creates a store with an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisEventStoreWithClient(client *redis.Client, keyPrefix string) *RedisEventStore {
	if keyPrefix == "" {
		keyPrefix = "webhook:event:"
	}
	return &RedisEventStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed records the event id with a TTL. Returns true if the id
// was newly recorded. SETNX makes the check-and-set atomic across
// instances.
func (s *RedisEventStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	key := s.keyPrefix + eventID

	result, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}

	return result, nil
}

// IsProcessed checks if an event id has already been recorded
func (s *RedisEventStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	key := s.keyPrefix + eventID

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}

	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisEventStore) Close() error {
	return s.client.Close()
}

// Ensure RedisEventStore implements EventDedupStore
var _ integration.EventDedupStore = (*RedisEventStore)(nil)
