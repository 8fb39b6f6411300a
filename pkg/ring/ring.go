package ring

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dataspace/catalogue-coordinator/pkg/kv"
	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

const defaultVirtualNodes = 150

// position is the 128-bit ring coordinate: the first 16 bytes of an MD5
// digest read big-endian. Comparing (hi, lo) pairs is equivalent to
// comparing the digests as big-endian integers.
type position struct {
	hi, lo uint64
}

func (p position) less(q position) bool {
	if p.hi != q.hi {
		return p.hi < q.hi
	}
	return p.lo < q.lo
}

func (p position) String() string {
	return fmt.Sprintf("%016x%016x", p.hi, p.lo)
}

func hashKey(key string) position {
	sum := md5.Sum([]byte(key))
	return position{
		hi: binary.BigEndian.Uint64(sum[0:8]),
		lo: binary.BigEndian.Uint64(sum[8:16]),
	}
}

// Ring is a consistent-hash ring with virtual nodes, keyed on offering
// identity. Safe for concurrent use; mutations hold a single writer lock.
type Ring struct {
	mu           sync.RWMutex
	virtualNodes int
	ring         map[position]string // slot → owner
	sorted       []position          // sorted slot index
	nodes        map[string]*types.Node

	store kv.Store
}

// New creates an empty ring. The KV store receives a best-effort snapshot
// after every mutation so a restarted coordinator can boot warm; pass nil
// to disable snapshots.
func New(virtualNodes int, store kv.Store) *Ring {
	if virtualNodes <= 0 {
		virtualNodes = defaultVirtualNodes
	}
	return &Ring{
		virtualNodes: virtualNodes,
		ring:         make(map[position]string),
		nodes:        make(map[string]*types.Node),
		store:        store,
	}
}

// Add inserts the node's virtual slots. Re-adding a present owner is a
// no-op.
func (r *Ring) Add(node *types.Node) {
	r.mu.Lock()
	if _, ok := r.nodes[node.Owner]; ok {
		r.nodes[node.Owner] = node
		r.mu.Unlock()
		return
	}
	r.nodes[node.Owner] = node
	for i := 0; i < r.virtualNodes; i++ {
		pos := hashKey(fmt.Sprintf("%s-%d", node.Owner, i))
		// First insertion wins on the (astronomically unlikely) collision.
		if _, taken := r.ring[pos]; taken {
			continue
		}
		r.ring[pos] = node.Owner
		r.sorted = append(r.sorted, pos)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].less(r.sorted[j]) })
	r.mu.Unlock()

	r.snapshot()
	log.WithComponent("ring").Info().Str("owner", node.Owner).Msg("node added to hash ring")
}

// Remove deletes the owner's virtual slots. Removing an absent owner is a
// no-op.
func (r *Ring) Remove(owner string) {
	r.mu.Lock()
	if _, ok := r.nodes[owner]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.nodes, owner)
	for i := 0; i < r.virtualNodes; i++ {
		pos := hashKey(fmt.Sprintf("%s-%d", owner, i))
		if r.ring[pos] != owner {
			continue
		}
		delete(r.ring, pos)
	}
	r.sorted = r.sorted[:0]
	for pos := range r.ring {
		r.sorted = append(r.sorted, pos)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].less(r.sorted[j]) })
	r.mu.Unlock()

	r.snapshot()
	log.WithComponent("ring").Info().Str("owner", owner).Msg("node removed from hash ring")
}

// Get returns the node owning key, or nil on an empty ring.
func (r *Ring) Get(key string) *types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.sorted) == 0 {
		return nil
	}
	idx := r.search(hashKey(key))
	return r.nodes[r.ring[r.sorted[idx]]]
}

// GetN walks clockwise from the key's position and returns up to n
// distinct owners. Fewer than n nodes on the ring yields all of them.
func (r *Ring) GetN(key string, n int) []*types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.sorted) == 0 || n <= 0 {
		return nil
	}
	idx := r.search(hashKey(key))
	seen := make(map[string]bool, n)
	var out []*types.Node
	for i := 0; i < len(r.sorted) && len(out) < n; i++ {
		owner := r.ring[r.sorted[(idx+i)%len(r.sorted)]]
		if seen[owner] {
			continue
		}
		seen[owner] = true
		out = append(out, r.nodes[owner])
	}
	return out
}

// UpdateStatus updates the cached node record only; ring membership is
// decided by Add and Remove.
func (r *Ring) UpdateStatus(owner string, status types.NodeStatus) {
	r.mu.Lock()
	node, ok := r.nodes[owner]
	if ok {
		node.Status = status
	}
	r.mu.Unlock()
	if ok {
		r.snapshot()
	}
}

// Members returns the owners currently on the ring.
func (r *Ring) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nodes))
	for owner := range r.nodes {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// Live returns the node records currently on the ring, sorted by owner.
func (r *Ring) Live() []*types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Node, 0, len(r.nodes))
	for _, node := range r.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Contains reports whether the owner has slots on the ring.
func (r *Ring) Contains(owner string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[owner]
	return ok
}

// search returns the index of the first slot >= pos, wrapping to 0.
func (r *Ring) search(pos position) int {
	idx := sort.Search(len(r.sorted), func(i int) bool {
		return !r.sorted[i].less(pos)
	})
	if idx == len(r.sorted) {
		idx = 0
	}
	return idx
}

// snapshotState is the persisted rebuild hint. The source of truth remains
// the live node set; a restarted coordinator re-generates slots from
// all_nodes members instead of trusting the snapshot blindly.
type snapshotState struct {
	Ring       map[string]string `json:"ring"`
	SortedKeys []string          `json:"sorted_keys"`
}

func (r *Ring) snapshot() {
	if r.store == nil {
		return
	}
	r.mu.RLock()
	state := snapshotState{
		Ring:       make(map[string]string, len(r.ring)),
		SortedKeys: make([]string, len(r.sorted)),
	}
	for pos, owner := range r.ring {
		state.Ring[pos.String()] = owner
	}
	for i, pos := range r.sorted {
		state.SortedKeys[i] = pos.String()
	}
	r.mu.RUnlock()

	data, err := json.Marshal(state)
	if err == nil {
		err = r.store.Set(context.Background(), kv.KeyHashRing, string(data))
	}
	if err != nil {
		log.WithComponent("ring").Error().Err(err).Msg("failed to snapshot hash ring")
	}
}
