package repository

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/drivebridge/internal/kvstore/domain"
)

const redisKeyPrefix = "drivebridge:kv:"

// RedisStore keeps short-lived entries such as the OAuth CSRF state.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := domain.ValidateKey(key); err != nil {
		return "", false, err
	}
	value, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := domain.ValidateKey(key); err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+key, value, 0).Err()
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := domain.ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return domain.ErrInvalidTTL
	}
	return s.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := domain.ValidateKey(key); err != nil {
			return err
		}
		prefixed = append(prefixed, redisKeyPrefix+key)
	}
	return s.client.Del(ctx, prefixed...).Err()
}

func (s *RedisStore) Take(ctx context.Context, key string) (string, bool, error) {
	if err := domain.ValidateKey(key); err != nil {
		return "", false, err
	}
	value, err := s.client.GetDel(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

var _ domain.Store = (*RedisStore)(nil)
