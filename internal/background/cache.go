package background

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

type memoryEntry struct {
	bg      domain.Background
	expires time.Time
}

// MemoryCache is the per-process cache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (domain.Background, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return domain.Background{}, false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return domain.Background{}, false
	}
	return e.bg, true
}

func (c *MemoryCache) Set(_ context.Context, key string, bg domain.Background, ttl time.Duration) {
	e := memoryEntry{bg: bg}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// RedisCache shares resolved backgrounds between instances. Redis errors
// count as misses.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisCache(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: "scene-bg:", logger: logger.Named("bg-cache")}
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.Background, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return domain.Background{}, false
	}
	var bg domain.Background
	if err := json.Unmarshal(raw, &bg); err != nil {
		c.logger.Warn("corrupt cache entry", zap.String("key", key), zap.Error(err))
		return domain.Background{}, false
	}
	return bg, true
}

func (c *RedisCache) Set(ctx context.Context, key string, bg domain.Background, ttl time.Duration) {
	raw, err := json.Marshal(bg)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}
