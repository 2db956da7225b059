package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/model"
)

// Cache stores merged search results per query.
type Cache interface {
	Get(ctx context.Context, query string) ([]model.SearchHit, bool)
	Set(ctx context.Context, query string, hits []model.SearchHit)
}

func cacheKey(query string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.Join(strings.Fields(query), " "))))
	return "tender:search:" + hex.EncodeToString(sum[:])
}

// RedisCache keeps results in Redis so parallel workers share them.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache creates a cache on an existing client.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Get implements Cache. Misses and Redis errors both report not found.
func (c *RedisCache) Get(ctx context.Context, query string) ([]model.SearchHit, bool) {
	val, err := c.rdb.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Debug("search: redis get failed", zap.Error(err))
		}
		return nil, false
	}
	var hits []model.SearchHit
	if err := json.Unmarshal(val, &hits); err != nil {
		return nil, false
	}
	return hits, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, query string, hits []model.SearchHit) {
	data, err := json.Marshal(hits)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(query), data, c.ttl).Err(); err != nil {
		zap.L().Debug("search: redis set failed", zap.Error(err))
	}
}

// MemoryCache is the in-process fallback used when no Redis is configured.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates an in-process cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, 10*time.Minute)}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, query string) ([]model.SearchHit, bool) {
	v, ok := m.c.Get(cacheKey(query))
	if !ok {
		return nil, false
	}
	hits, ok := v.([]model.SearchHit)
	return hits, ok
}

// Set implements Cache.
func (m *MemoryCache) Set(_ context.Context, query string, hits []model.SearchHit) {
	m.c.Set(cacheKey(query), hits, gocache.DefaultExpiration)
}
