package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the minimal key-value contract session memory needs: an ordered
// list per key with a TTL refreshed on every append.
type Cache interface {
	Append(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Range(ctx context.Context, key string) ([][]byte, error)
	Delete(ctx context.Context, key string) error
}

// RedisCache stores each session as a Redis list. RPUSH keeps concurrent
// appends for one session from overwriting each other, and key expiry gives
// passive TTL cleanup with no sweeper.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Append(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, value)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Range(ctx context.Context, key string) ([][]byte, error) {
	values, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// MemoryCache keeps sessions in a process-local map. Suitable for local mode
// and tests; expiry is checked lazily on access since there is no backing
// store to expire keys for us.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	values    [][]byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Append(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.live(key)
	if entry == nil {
		entry = &memoryEntry{}
		c.entries[key] = entry
	}
	entry.values = append(entry.values, value)
	entry.expiresAt = c.now().Add(ttl)
	return nil
}

func (c *MemoryCache) Range(ctx context.Context, key string) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.live(key)
	if entry == nil {
		return nil, nil
	}
	out := make([][]byte, len(entry.values))
	copy(out, entry.values)
	return out, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// live returns the entry for key, dropping it first when its TTL has lapsed.
// Callers must hold the mutex.
func (c *MemoryCache) live(key string) *memoryEntry {
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil
	}
	return entry
}
