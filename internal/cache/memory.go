package cache

import (
	"sync"
	"time"
)

// MemoryCache is the in-process L1. Values are stored as-is; TTL is enforced
// on read and by a background sweep.
type MemoryCache struct {
	store sync.Map
	done  chan struct{}
	once  sync.Once
}

type cacheItem struct {
	value      interface{}
	expiration time.Time
}

func NewMemoryCache() *MemoryCache {
	cache := &MemoryCache{
		done: make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	c.store.Store(key, &cacheItem{
		value:      value,
		expiration: time.Now().Add(ttl),
	})
	return nil
}

func (c *MemoryCache) Get(key string) (interface{}, bool) {
	item, exists := c.store.Load(key)
	if !exists {
		return nil, false
	}

	entry := item.(*cacheItem)
	if time.Now().After(entry.expiration) {
		c.store.Delete(key)
		return nil, false
	}

	return entry.value, true
}

func (c *MemoryCache) Exists(key string) (bool, error) {
	_, exists := c.Get(key)
	return exists, nil
}

func (c *MemoryCache) Delete(key string) error {
	c.store.Delete(key)
	return nil
}

func (c *MemoryCache) DeletePattern(pattern string) error {
	c.store.Range(func(key, value interface{}) bool {
		if matchPattern(key.(string), pattern) {
			c.store.Delete(key)
		}
		return true
	})
	return nil
}

func (c *MemoryCache) Clear() error {
	c.store = sync.Map{}
	return nil
}

func (c *MemoryCache) Stats() map[string]interface{} {
	count := 0
	c.store.Range(func(_, _ interface{}) bool {
		count++
		return true
	})

	return map[string]interface{}{
		"items": count,
		"type":  "memory",
	}
}

func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.store.Range(func(key, value interface{}) bool {
				if now.After(value.(*cacheItem).expiration) {
					c.store.Delete(key)
				}
				return true
			})
		}
	}
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// matchPattern supports exact keys, "*" and "prefix*" patterns, which is all
// the invalidation paths need.
func matchPattern(text, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(text) >= len(prefix) && text[:len(prefix)] == prefix
	}

	return text == pattern
}
