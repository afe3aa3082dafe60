package persistence

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{
		client:  client,
		baseTTL: 30 * 24 * time.Hour,
	}
}

// RedisBackend stores each cart blob under "cart:<key>". Abandoned carts
// expire after baseTTL plus up to a day of jitter; every save refreshes it.
type RedisBackend struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r RedisBackend) Save(ctx context.Context, key string, blob []byte) error {
	jitter := time.Duration(rand.Intn(24)) * time.Hour
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, redisKey(key), blob, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func redisKey(key string) string {
	return fmt.Sprintf("cart:%s", key)
}
