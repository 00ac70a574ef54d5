package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/guildpulse/guildpulse/pkg/observability"
)

// Cache is a two-tier read cache for query results: a small in-process
// expirable LRU in front of Redis. Both tiers hold JSON so values
// survive process restarts and are shared across replicas.
type Cache struct {
	local  *expirable.LRU[string, []byte]
	client *redis.Client
	logger *observability.Logger
	prefix string
	ttl    time.Duration
}

// New builds a cache. size bounds the in-process tier; ttl applies to
// both tiers.
func New(client *redis.Client, logger *observability.Logger, prefix string, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{
		local:  expirable.NewLRU[string, []byte](size, nil, ttl),
		client: client,
		logger: logger,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *Cache) redisKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get loads a cached value into v. Returns false on a miss. A Redis hit
// is promoted into the in-process tier. Redis failures degrade to a
// miss rather than failing the read path.
func (c *Cache) Get(ctx context.Context, key string, v interface{}) bool {
	if data, ok := c.local.Get(key); ok {
		if err := json.Unmarshal(data, v); err == nil {
			return true
		}
		c.local.Remove(key)
	}

	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err == redis.Nil {
		return false
	} else if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("dropping undecodable cache entry")
		c.client.Del(ctx, c.redisKey(key))
		return false
	}
	c.local.Add(key, data)
	return true
}

// Set stores a value in both tiers. Redis failures are logged, not
// returned; the cache is best-effort.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("failed to encode cache value")
		return
	}
	c.local.Add(key, data)
	if err := c.client.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// Invalidate drops a key from both tiers
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.local.Remove(key)
	if err := c.client.Del(ctx, c.redisKey(key)).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache invalidation failed")
	}
}
