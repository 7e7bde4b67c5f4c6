// Package urlcache keeps recently rehydrated CDN URLs in Redis. Provider
// links stay valid for roughly 24 hours, so entries expire slightly ahead
// of that and a miss simply triggers a fresh provider fetch.
package urlcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/media-archiver/internal/logger"
)

// Cache maps content hashes to their last known CDN URL. A nil *Cache is
// valid and behaves as an always-miss cache, so callers need no nil checks
// when Redis is not configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// New creates a URL cache. Entries live for ttl, which must stay below the
// provider's link validity window.
func New(client *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

func (c *Cache) key(contentHash string) string {
	return fmt.Sprintf("archive:url:%s", contentHash)
}

// Get returns the cached URL for a content hash, or "" on a miss. Redis
// errors degrade to a miss rather than failing the request.
func (c *Cache) Get(ctx context.Context, contentHash string) string {
	if c == nil || c.client == nil {
		return ""
	}

	key := c.key(contentHash)
	url, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("Redis error reading cached URL",
				logger.String("content_hash", contentHash),
				logger.String("redis_key", key),
				logger.Error(err),
			)
		}
		return ""
	}

	c.logger.Debug("URL cache hit",
		logger.String("content_hash", contentHash),
		logger.String("redis_key", key),
	)
	return url
}

// Put stores a freshly resolved URL. Failures are logged and swallowed;
// the cache is an optimization, not a source of truth.
func (c *Cache) Put(ctx context.Context, contentHash, url string) {
	if c == nil || c.client == nil {
		return
	}

	key := c.key(contentHash)
	if err := c.client.Set(ctx, key, url, c.ttl).Err(); err != nil {
		c.logger.Error("Redis error caching URL",
			logger.String("content_hash", contentHash),
			logger.String("redis_key", key),
			logger.Duration("ttl", c.ttl),
			logger.Error(err),
		)
		return
	}

	c.logger.Debug("URL cached",
		logger.String("content_hash", contentHash),
		logger.String("redis_key", key),
		logger.Duration("ttl", c.ttl),
	)
}
