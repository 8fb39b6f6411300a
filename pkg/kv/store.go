package kv

import "context"

// Keys used by the coordinator. The key space is partitioned per component:
// the registry owns the node records, the ring owns its snapshot, and the
// placement driver owns the offering records.
const (
	KeyAllNodes = "all_nodes"
	KeyHashRing = "hash_ring"

	NodePrefix          = "node:"
	OfferingPrefix      = "offering:"
	OfferingNodePrefix  = "offering_node:"
	NodeOfferingsPrefix = "node_offerings:"
)

// Store is the narrow key/value surface the coordinator needs from its
// shared backend. All values are text; structured values are JSON-encoded
// by callers.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Hash operations, used for node records.
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Set operations, used for the node index and inverse offering indexes.
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// Scan walks keys matching a glob pattern.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned by Get when the key does not exist.
type ErrNotFound struct{ Key string }

func (e ErrNotFound) Error() string { return "kv: key not found: " + e.Key }

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
