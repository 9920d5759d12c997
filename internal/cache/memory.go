package cache

import (
	"context"
	"sync"
	"time"

	"heritage-atlas/internal/domain"
)

type memoryItem struct {
	value      []byte
	expiration time.Time
}

// MemoryCache is the in-process fallback used when redis is unreachable.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]memoryItem
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemoryCache starts a janitor goroutine that drops expired entries every
// interval. Call Close to stop it.
func NewMemoryCache(interval time.Duration) *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]memoryItem),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go c.janitor(interval)
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.data[key]
	if !ok || c.now().After(item.expiration) {
		return nil, domain.ErrCacheMiss
	}
	return item.value, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	c.data[key] = memoryItem{value: stored, expiration: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.data {
		if now.After(item.expiration) {
			delete(c.data, key)
		}
	}
}
