package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by SessionCache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// SessionCache is the narrow contract the session store needs from a cache
// backend. Values are opaque; every Put is a full replacement.
type SessionCache interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Evict(ctx context.Context, key string) error
	// EvictPrefix removes every key starting with prefix.
	EvictPrefix(ctx context.Context, prefix string) error
}
