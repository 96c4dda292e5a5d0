package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryCache struct {
	c *gocache.Cache
}

// NewMemory returns an in-process cache. Expired items are purged every minute.
func NewMemory() Cache {
	return &memoryCache{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v.([]byte), nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

func (m *memoryCache) Close() error {
	m.c.Flush()
	return nil
}
