package cache

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"readconfirm/internal/errs"
	"readconfirm/internal/ports"
)

const redisKeyPrefix = "readconfirm:"

// RedisCache shares tokens and cached values between server instances.
type RedisCache struct {
	client rueidis.Client
}

var _ ports.Cache = (*RedisCache)(nil)

func NewRedisCache(client rueidis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedis opens a client against addr using database index db.
func DialRedis(addr string, db int) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		SelectDB:     db,
		DisableCache: true,
	})
	if err != nil {
		return nil, errs.Wrapf(err, "connect redis %q", addr)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	value, err := c.client.Do(ctx, c.client.B().Get().Key(redisKeyPrefix+trimmedKey).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "redis get")
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	redisKey := redisKeyPrefix + trimmedKey
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = c.client.B().Set().Key(redisKey).Value(value).Ex(ttl).Build()
	} else {
		cmd = c.client.B().Set().Key(redisKey).Value(value).Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return errs.Wrap(err, "redis set")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if err := c.client.Do(ctx, c.client.B().Del().Key(redisKeyPrefix+trimmedKey).Build()).Error(); err != nil {
		return errs.Wrap(err, "redis del")
	}
	return nil
}
