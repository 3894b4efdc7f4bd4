package utils

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultCacheTTL = time.Hour
	cacheOpTimeout  = 2 * time.Second
	scanBatch       = 1000
	maxScanRounds   = 10
)

// RedisCache is a best-effort JSON cache. Every failure degrades to a miss.
// A RedisCache with a nil client is a valid, always-missing cache.
type RedisCache struct {
	rc     *redis.Client
	logger *zap.Logger
}

// NewRedisCache wraps rc, which may be nil.
func NewRedisCache(rc *redis.Client, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rc: rc, logger: logger.Named("cache")}
}

// GetBytes returns cached bytes for key.
func (c *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if c.rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

// SetBytes stores b under key; a non-positive ttl means one hour.
func (c *RedisCache) SetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if c.rc == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// SetJSON marshals v and stores it under key.
func (c *RedisCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.SetBytes(ctx, key, b, ttl)
}

// Incr atomically increments the counter under key; the key never expires.
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, bool) {
	if c.rc == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	n, err := c.rc.Incr(ctx, key).Result()
	if err != nil {
		c.logger.Warn("cache incr failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return n, true
}

// InvalidatePrefix deletes every key starting with prefix using SCAN.
func (c *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) {
	if c.rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var (
		cursor  uint64
		removed int
	)
	for i := 0; i < maxScanRounds; i++ {
		keys, next, err := c.rc.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			c.logger.Warn("cache scan failed", zap.String("prefix", prefix), zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := c.rc.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("cache delete failed", zap.String("prefix", prefix), zap.Error(err))
				return
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Debug("cache invalidated", zap.String("prefix", prefix), zap.Int("keys", removed))
}
