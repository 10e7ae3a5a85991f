package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a namespaced read-through cache for job records.
type Cache struct {
	Redis     redis.UniversalClient
	Namespace string
}

// Get value from Redis
func (c *Cache) Get(ctx context.Context, key string) (interface{}, error) {
	cmd := c.Redis.Get(ctx, c.Namespace+":"+key)
	return cmd.Val(), cmd.Err()
}

// Store data to Redis with a TTL in seconds
func (c *Cache) Store(ctx context.Context, key string, ttl int, value interface{}) error {
	return c.Redis.Set(ctx, c.Namespace+":"+key, value, time.Duration(ttl)*time.Second).Err()
}

// Flush removes every key in the namespace
func (c *Cache) Flush(ctx context.Context) error {
	keys := c.Redis.Keys(ctx, c.Namespace+":*")
	//using pipeline to delete keys efficiently
	pl := c.Redis.Pipeline()

	for _, key := range keys.Val() {
		pl.Del(ctx, key)
	}

	_, err := pl.Exec(ctx)
	return err
}

// Delete key from Redis
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.Redis.Del(ctx, c.Namespace+":"+key).Err()
}

// Create Redis connection
func NewCache(namespace string, redisCl redis.UniversalClient) *Cache {
	return &Cache{
		Namespace: namespace,
		Redis:     redisCl,
	}
}
