package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blacklistPrefix = "jwt:blacklist:"

// TokenBlacklist records revoked token ids until they would have expired.
// It uses Redis when available and process memory otherwise.
type TokenBlacklist struct {
	rc  *redis.Client
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewTokenBlacklist returns a blacklist backed by rc, which may be nil.
func NewTokenBlacklist(rc *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rc: rc, now: time.Now, entries: map[string]time.Time{}}
}

// Revoke blacklists tokenID until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 || tokenID == "" {
		return nil
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		return b.rc.Set(ctx, blacklistPrefix+tokenID, "1", ttl).Err()
	}
	b.mu.Lock()
	b.entries[tokenID] = expiresAt
	b.mu.Unlock()
	return nil
}

// IsRevoked reports whether tokenID was revoked. Redis errors count as not revoked.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, tokenID string) bool {
	if tokenID == "" {
		return false
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		n, err := b.rc.Exists(ctx, blacklistPrefix+tokenID).Result()
		if err != nil {
			Logger.Warn("token blacklist lookup failed", zap.Error(err))
			return false
		}
		return n > 0
	}
	b.mu.RLock()
	expiresAt, ok := b.entries[tokenID]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if b.now().After(expiresAt) {
		b.mu.Lock()
		delete(b.entries, tokenID)
		b.mu.Unlock()
		return false
	}
	return true
}
