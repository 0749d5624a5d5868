package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "webhook:idempotency:"

// RedisStore implements Store on Redis. SET NX gives the atomic first-seen
// claim and the TTL handles retention, so Cleanup is a no-op.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SetIfAbsent claims the key with SET NX.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, at time.Time, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, redisKeyPrefix+key, at.UTC().Format(time.RFC3339Nano), ttl).Result()
}

// Get returns the recorded processing time for a key.
func (s *RedisStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// Delete removes a key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Cleanup is a no-op; Redis expires records via TTL.
func (s *RedisStore) Cleanup(ctx context.Context) error {
	return nil
}

var _ Store = (*RedisStore)(nil)
