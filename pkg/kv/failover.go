package kv

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
)

// failover serves from the remote backend until a connection-class error,
// then degrades to the in-process fallback for the rest of the store's
// lifetime. Recovery happens on the next fresh Connect, not mid-flight.
type failover struct {
	remote   Store
	fallback *Memory

	mu       sync.Mutex
	degraded bool
}

func newFailover(remote Store, fallback *Memory) *failover {
	return &failover{remote: remote, fallback: fallback}
}

// current returns the store operations should run against.
func (f *failover) current() Store {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		return f.fallback
	}
	return f.remote
}

// degrade reports whether the operation should be replayed on the fallback.
// The first connection-class error flips the store over; concurrent callers
// that raced the flip replay too.
func (f *failover) degrade(err error) bool {
	if !isConnErr(err) {
		return false
	}
	f.mu.Lock()
	if !f.degraded {
		f.degraded = true
		log.WithComponent("kv").Warn().Err(err).Msg("kv backend lost, degrading to in-memory fallback")
	}
	f.mu.Unlock()
	return true
}

// isConnErr separates connection-class failures (dial errors, timeouts,
// dropped links) from errors the backend itself replied with.
func isConnErr(err error) bool {
	if err == nil || IsNotFound(err) || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var replied redis.Error
	return !errors.As(err, &replied)
}

func (f *failover) Get(ctx context.Context, key string) (string, error) {
	v, err := f.current().Get(ctx, key)
	if f.degrade(err) {
		return f.fallback.Get(ctx, key)
	}
	return v, err
}

func (f *failover) Set(ctx context.Context, key, value string) error {
	err := f.current().Set(ctx, key, value)
	if f.degrade(err) {
		return f.fallback.Set(ctx, key, value)
	}
	return err
}

func (f *failover) Delete(ctx context.Context, key string) error {
	err := f.current().Delete(ctx, key)
	if f.degrade(err) {
		return f.fallback.Delete(ctx, key)
	}
	return err
}

func (f *failover) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := f.current().Exists(ctx, key)
	if f.degrade(err) {
		return f.fallback.Exists(ctx, key)
	}
	return ok, err
}

func (f *failover) HSet(ctx context.Context, key string, fields map[string]string) error {
	err := f.current().HSet(ctx, key, fields)
	if f.degrade(err) {
		return f.fallback.HSet(ctx, key, fields)
	}
	return err
}

func (f *failover) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := f.current().HGetAll(ctx, key)
	if f.degrade(err) {
		return f.fallback.HGetAll(ctx, key)
	}
	return m, err
}

func (f *failover) SAdd(ctx context.Context, key string, members ...string) error {
	err := f.current().SAdd(ctx, key, members...)
	if f.degrade(err) {
		return f.fallback.SAdd(ctx, key, members...)
	}
	return err
}

func (f *failover) SRem(ctx context.Context, key string, members ...string) error {
	err := f.current().SRem(ctx, key, members...)
	if f.degrade(err) {
		return f.fallback.SRem(ctx, key, members...)
	}
	return err
}

func (f *failover) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := f.current().SMembers(ctx, key)
	if f.degrade(err) {
		return f.fallback.SMembers(ctx, key)
	}
	return members, err
}

func (f *failover) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, next, err := f.current().Scan(ctx, cursor, pattern, count)
	if f.degrade(err) {
		return f.fallback.Scan(ctx, cursor, pattern, count)
	}
	return keys, next, err
}

func (f *failover) Ping(ctx context.Context) error {
	err := f.current().Ping(ctx)
	if f.degrade(err) {
		return f.fallback.Ping(ctx)
	}
	return err
}

func (f *failover) Close() error {
	f.fallback.Close()
	return f.remote.Close()
}
