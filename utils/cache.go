package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IndexCacheKey is the fixed key under which the rendered home listing is
// stored. It is independent of the page query parameter: every page number
// resolves to the same entry until the TTL passes.
const IndexCacheKey = "cache:index_page"

// Cache is a shared key-value store for whole rendered responses. Entries
// expire by TTL only; Clear is for tests and administrative flows.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
	Clear()
}

// redisCache stores entries in Redis under a common prefix so Clear only
// touches cache keys.
type redisCache struct {
	client *redis.Client
}

// NewRedisCache builds a Cache backed by the given Redis client.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if Sugar != nil && err != redis.Nil {
			Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

func (c *redisCache) Set(key string, val []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		if Sugar != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
	}
}

func (c *redisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.client.Scan(ctx, cursor, "cache:*", 1000).Result()
		if err != nil {
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.client.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}

type memoryEntry struct {
	val       []byte
	expiresAt time.Time
}

// memoryCache is a single-instance fallback used in tests and when Redis is
// not configured.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache builds an in-process Cache with per-entry TTL.
func NewMemoryCache() Cache {
	return &memoryCache{entries: map[string]memoryEntry{}}
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.val, true
}

func (c *memoryCache) Set(key string, val []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{val: val, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, "cache:") {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
