package geocode

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/localizador/backend/internal/geo"
)

// Cache stores resolved points keyed by normalized address. Only
// successful resolutions are stored.
type Cache interface {
	Get(ctx context.Context, key string) (geo.Point, bool)
	Set(ctx context.Context, key string, p geo.Point)
}

// MemoryCache lives for the process lifetime.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]geo.Point
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string]geo.Point{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) (geo.Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.items[key]
	return p, ok
}

func (c *MemoryCache) Set(_ context.Context, key string, p geo.Point) {
	c.mu.Lock()
	c.items[key] = p
	c.mu.Unlock()
}

// RedisCache shares resolutions between replicas. Redis errors are treated
// as misses.
type RedisCache struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, Prefix: "geocode:", TTL: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (geo.Point, bool) {
	raw, err := c.Client.Get(ctx, c.Prefix+key).Bytes()
	if err != nil {
		return geo.Point{}, false
	}
	var p geo.Point
	if err := json.Unmarshal(raw, &p); err != nil || !p.Valid() {
		return geo.Point{}, false
	}
	return p, true
}

func (c *RedisCache) Set(ctx context.Context, key string, p geo.Point) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.Client.Set(ctx, c.Prefix+key, raw, c.TTL).Err()
}
