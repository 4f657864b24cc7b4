package kvx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript is the fixed-window counter primitive. Running it as one script
// keeps check-and-increment atomic under concurrent attempts from the same
// identity. The EXPIRE fires only on the first increment, so the window is
// anchored to the first attempt and denied checks cannot extend it.
var hitScript = redis.NewScript(`
	local count = tonumber(redis.call('GET', KEYS[1]) or '0')
	local limit = tonumber(ARGV[1])
	if count >= limit then
		return 0
	end
	count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[2])
	end
	return 1
`)

// Redis implements Store on a single shared Redis instance.
type Redis struct {
	client *redis.Client
}

var _ Store = (*Redis)(nil)

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to Redis and verifies the connection before returning.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kvx: connect redis at %s: %w", opts.Addr, err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kvx: get %s: %w", key, err)
	}
	return val, nil
}

func (r *Redis) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("kvx: refusing to set %s without a TTL", key)
	}
	if err := r.client.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kvx: setex %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kvx: del %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Hit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	res, err := hitScript.Run(ctx, r.client, []string{key}, limit, seconds).Int64()
	if err != nil {
		return false, fmt.Errorf("kvx: hit %s: %w", key, err)
	}
	return res == 1, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
