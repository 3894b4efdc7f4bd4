package forum

import (
	"context"
	"time"
)

// Cache is the subset of the shared Redis cache the engine relies on.
// All operations are best effort; a nil Cache disables caching.
type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration)
	Incr(ctx context.Context, key string) (int64, bool)
	InvalidatePrefix(ctx context.Context, prefix string)
}

type noCache struct{}

func (noCache) GetBytes(context.Context, string) ([]byte, bool) { return nil, false }
func (noCache) SetJSON(context.Context, string, interface{}, time.Duration) {}
func (noCache) Incr(context.Context, string) (int64, bool) { return 0, true }
func (noCache) InvalidatePrefix(context.Context, string) {}
