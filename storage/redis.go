package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisSlot stores the value under a single key with no expiry.
type RedisSlot struct {
	client *redis.Client
	key    string
}

func NewRedisSlot(client *redis.Client, key string) *RedisSlot {
	if client == nil {
		panic("storage.NewRedisSlot: client is nil")
	}
	return &RedisSlot{client: client, key: key}
}

func (r *RedisSlot) Name() string { return "redis:" + r.key }

func (r *RedisSlot) Read(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	return data, err
}

func (r *RedisSlot) Write(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data, 0).Err()
}

func (r *RedisSlot) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
