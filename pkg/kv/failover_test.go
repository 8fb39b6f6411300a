package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// flakyStore behaves like a healthy backend until setDown, then fails every
// operation with a connection-class error.
type flakyStore struct {
	*Memory
	mu   sync.Mutex
	down bool
}

func (s *flakyStore) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func (s *flakyStore) broken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if s.broken() {
		return "", errConnRefused
	}
	return s.Memory.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	if s.broken() {
		return errConnRefused
	}
	return s.Memory.Set(ctx, key, value)
}

func (s *flakyStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if s.broken() {
		return nil, errConnRefused
	}
	return s.Memory.SMembers(ctx, key)
}

func (s *flakyStore) Ping(ctx context.Context) error {
	if s.broken() {
		return errConnRefused
	}
	return s.Memory.Ping(ctx)
}

// TestFailoverMidRun verifies a backend lost after dial degrades to the
// fallback: new writes land in process memory and nothing errors out.
func TestFailoverMidRun(t *testing.T) {
	ctx := context.Background()
	remote := &flakyStore{Memory: NewMemory()}
	f := newFailover(remote, NewMemory())

	if err := f.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("Set before outage: %v", err)
	}

	remote.setDown(true)

	if err := f.Set(ctx, "b", "2"); err != nil {
		t.Fatalf("Set during outage: %v", err)
	}
	if v, err := f.Get(ctx, "b"); err != nil || v != "2" {
		t.Errorf("Get(b) = %q, %v", v, err)
	}
	if err := f.Ping(ctx); err != nil {
		t.Errorf("Ping during outage = %v, want nil", err)
	}

	// Recovery is a fresh Connect, not mid-flight: the store keeps serving
	// from the fallback even after the backend returns.
	remote.setDown(false)
	if v, err := f.Get(ctx, "b"); err != nil || v != "2" {
		t.Errorf("Get(b) after backend returned = %q, %v", v, err)
	}
}

// TestFailoverMissDoesNotDegrade verifies a key miss is not treated as a
// lost backend.
func TestFailoverMissDoesNotDegrade(t *testing.T) {
	ctx := context.Background()
	remote := &flakyStore{Memory: NewMemory()}
	f := newFailover(remote, NewMemory())

	if _, err := f.Get(ctx, "absent"); !IsNotFound(err) {
		t.Fatalf("Get(absent) = %v, want not-found", err)
	}

	if err := f.Set(ctx, "x", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := remote.Memory.Get(ctx, "x"); err != nil || v != "1" {
		t.Errorf("backend write after a miss = %q, %v; store degraded too eagerly", v, err)
	}
}
