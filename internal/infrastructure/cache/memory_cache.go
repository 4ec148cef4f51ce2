package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"readconfirm/internal/ports"
)

// MemoryCache keeps entries in process. Suitable for a single server.
type MemoryCache struct {
	store *gocache.Cache
}

var _ ports.Cache = (*MemoryCache)(nil)

func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &MemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	raw, found := c.store.Get(trimmedKey)
	if !found {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", false, nil
	}
	return value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(trimmedKey, value, ttl)
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	c.store.Delete(trimmedKey)
	return nil
}
