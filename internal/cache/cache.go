// Package cache stores serialized verification results keyed by normalized code.
package cache

import (
	"context"
	"time"
)

// Cache is the storage used by the verification service. Get returns
// domain.ErrCacheMiss when the key is absent or expired.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
