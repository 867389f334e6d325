package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultTTL is how long a cached listing is served
const DefaultTTL = 5 * time.Minute

const cacheKey = "active_users_with_permissions"

// MemoryCache keeps the listing in process
type MemoryCache struct {
	lru *lru.LRU[string, []Entry]
}

// NewMemoryCache creates a memory cache; ttl <= 0 uses DefaultTTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{lru: lru.NewLRU[string, []Entry](1, nil, ttl)}
}

func (c *MemoryCache) Get(ctx context.Context) ([]Entry, bool, error) {
	entries, ok := c.lru.Get(cacheKey)
	return entries, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, entries []Entry) error {
	c.lru.Add(cacheKey, entries)
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context) error {
	c.lru.Remove(cacheKey)
	return nil
}

// RedisCache shares the listing between replicas
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache. keyPrefix namespaces the key
// when several deployments share a Redis.
func NewRedisCache(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, key: keyPrefix + "directory:" + cacheKey, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) ([]Entry, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.client.Del(ctx, c.key)
		return nil, false, fmt.Errorf("failed to unmarshal directory: %w", err)
	}
	return entries, true, nil
}

func (c *RedisCache) Set(ctx context.Context, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal directory: %w", err)
	}
	return c.client.Set(ctx, c.key, data, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
