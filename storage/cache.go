package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a durable Slot with a Redis read-through copy. Redis failures
// never fail a read or write; they fall back to the base slot.
type Cache struct {
	base  Slot
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Slot using the provided Redis client and TTL.
func NewCache(base Slot, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base slot is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) Name() string { return c.base.Name() }

func (c *Cache) Read(ctx context.Context) ([]byte, error) {
	if data, ok := c.load(ctx); ok {
		return data, nil
	}
	data, err := c.base.Read(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, data)
	return data, nil
}

// Write persists to the base slot and then refreshes the cached copy.
func (c *Cache) Write(ctx context.Context, data []byte) error {
	if err := c.base.Write(ctx, data); err != nil {
		c.evict(ctx)
		return err
	}
	c.store(ctx, data)
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	err := c.base.Clear(ctx)
	c.evict(ctx)
	return err
}

func (c *Cache) load(ctx context.Context) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			_ = c.redis.Del(ctx, c.key()).Err()
		}
		return nil, false
	}
	if _, err := Decode(data); err != nil {
		_ = c.redis.Del(ctx, c.key()).Err()
		return nil, false
	}
	return data, true
}

func (c *Cache) store(ctx context.Context, data []byte) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	if err := c.redis.Set(ctx, c.key(), data, c.ttl).Err(); err != nil {
		c.evict(ctx)
	}
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, c.key()).Err()
}

func (c *Cache) key() string {
	return "board-cache:" + c.base.Name()
}
