package ports

import (
	"context"
	"time"
)

// Cache is a key-value store for tokens and read-through values.
// A ttl of zero means the entry does not expire.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
