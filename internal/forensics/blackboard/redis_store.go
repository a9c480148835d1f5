package blackboard

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBackingStore is the cache-tier BackingStore: scope-keyed
// values with TTLs over a go-redis client.
type RedisBackingStore struct {
	client *redis.Client
}

// NewRedisBackingStore wraps an already-configured go-redis client.
func NewRedisBackingStore(client *redis.Client) *RedisBackingStore {
	return &RedisBackingStore{client: client}
}

func (s *RedisBackingStore) GetJSON(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, blackboardIOTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Str("key", key).Msg("forensics blackboard redis read timed out")
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisBackingStore) SetJSONWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, blackboardIOTimeout)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Str("key", key).Msg("forensics blackboard redis write timed out")
			return nil
		}
		return err
	}
	return nil
}
