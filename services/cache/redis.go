package cachesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/njautech/schoolhub/core"
)

// RedisCache stores values as JSON in Redis. Keys embed a generation counter:
// Flush bumps it, which orphans every older key until its TTL runs out.
type RedisCache struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

var _ core.Cache = (*RedisCache)(nil)

func NewRedisCache(ctx context.Context, conf core.CacheConfig, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	c := &RedisCache{client: client, prefix: prefix, ttl: conf.TTL, timeout: conf.Timeout}
	if c.timeout <= 0 {
		c.timeout = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return c, nil
}

func (c *RedisCache) genKey() string {
	return c.prefix + ":gen"
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey()).Int64()
	if err != nil && err != redis.Nil {
		return 0, errors.Wrap(err, "reading generation")
	}
	return gen, nil
}

func (c *RedisCache) key(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, key)
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	gen, err := c.generation(ctx)
	if err != nil {
		return 0, false, err
	}
	data, err := c.client.Get(ctx, c.key(gen, key)).Bytes()
	if err == redis.Nil {
		return gen, false, nil
	}
	if err != nil {
		return gen, false, errors.Wrap(err, "getting value")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return gen, false, errors.Wrap(err, "decoding value")
	}
	return gen, true, nil
}

// Set writes under the generation read by Get. After a Flush that key is never read again.
func (c *RedisCache) Set(ctx context.Context, gen int64, key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrap(err, "encoding value")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return errors.Wrap(c.client.Set(ctx, c.key(gen, key), data, c.ttl).Err(), "setting value")
}

func (c *RedisCache) Flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return errors.Wrap(c.client.Incr(ctx, c.genKey()).Err(), "bumping generation")
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
