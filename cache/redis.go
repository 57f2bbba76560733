package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/casemgmt/portal-gateway/internal/errors"
)

// Cmdable defines the Redis command surface the gateway uses. It is satisfied
// by [*redis.Client] and by fakes in unit tests, enabling dependency
// injection via [NewRedisFromClient] without a real Redis instance.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

var _ Cmdable = (*redis.Client)(nil)

// Redis is a Cache implementation backed by a Redis server. It is the
// production session cache: sessions survive gateway restarts and are shared
// across instances.
type Redis struct {
	client Cmdable
}

var _ Cache = (*Redis)(nil)

// NewRedis connects to the Redis server at the given URL
// (e.g. "redis://localhost:6379/0") and verifies the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid REDIS_URL: %s", err.Error())
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "[NewRedis] ping failed")
	}

	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client. Primarily for testing.
func NewRedisFromClient(client Cmdable) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[Redis.Get] %q", key)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "[Redis.Set] %q", key)
	}
	return nil
}

func (r *Redis) Drop(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "[Redis.Drop] %q", key)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
