package limitx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared BucketStore for multi-instance deployments.
// INCR gives us the atomic increment; the first increment of a window
// arms the key's TTL so Redis expires the bucket on its own.
//
// Window alignment differs slightly from MemoryStore: the window starts
// at the first attempt Redis sees, which is the same contract callers
// observe from the memory store anyway.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "rl:"}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, err
	}

	if count == 1 {
		if err := s.client.Expire(ctx, s.prefix+key, window).Err(); err != nil {
			return 0, err
		}
	}

	return count, nil
}

func (s *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, s.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Sweep is a no-op: Redis TTLs already expire stale buckets.
func (s *RedisStore) Sweep(context.Context) error { return nil }
