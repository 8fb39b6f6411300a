package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
)

// Redis is the primary Store backend, shared across coordinator processes.
type Redis struct {
	client *redis.Client
}

// Options carries the connection parameters for the remote backend.
type Options struct {
	Host string
	Port int
	DB   int

	// DialTimeout bounds the initial connection attempt. Zero means 2s,
	// matching the short probe used before falling back.
	DialTimeout time.Duration
}

// NewRedis creates a Redis-backed store. It does not verify connectivity;
// use Connect for the fallback-aware path.
func NewRedis(opts Options) *Redis {
	dial := opts.DialTimeout
	if dial == 0 {
		dial = 2 * time.Second
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:        fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			DB:          opts.DB,
			DialTimeout: dial,
			ReadTimeout: 5 * time.Second,
		}),
	}
}

// Connect returns a Store against the remote backend, degrading to the
// in-process fallback when the backend cannot be reached, at dial time or
// later. The fallback is not shared across OS processes but satisfies the
// same semantics.
func Connect(ctx context.Context, opts Options) Store {
	r := NewRedis(opts)
	if err := r.Ping(ctx); err != nil {
		log.WithComponent("kv").Warn().Err(err).
			Str("addr", fmt.Sprintf("%s:%d", opts.Host, opts.Port)).
			Msg("redis unreachable, using in-memory fallback")
		return NewMemory()
	}
	return newFailover(r, NewMemory())
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound{Key: key}
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *Redis) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return r.client.HSet(ctx, key, args...).Err()
}

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

func (r *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SAdd(ctx, key, args...).Err()
}

func (r *Redis) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SRem(ctx, key, args...).Err()
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *Redis) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	return r.client.Scan(ctx, cursor, pattern, count).Result()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
