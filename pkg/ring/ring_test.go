package ring

import (
	"fmt"
	"testing"

	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

func testNode(owner string) *types.Node {
	return &types.Node{
		Owner:   owner,
		Address: "http://" + owner + ".example.org",
		NodeURL: "http://" + owner + ".example.org:3030/catalogue",
		Status:  types.NodeStatusHealthy,
	}
}

// TestAddIdempotent verifies that re-adding a node changes nothing.
func TestAddIdempotent(t *testing.T) {
	r := New(150, nil)
	r.Add(testNode("A"))
	slots := len(r.sorted)

	r.Add(testNode("A"))
	if got := len(r.sorted); got != slots {
		t.Errorf("re-add changed slot count: %d != %d", got, slots)
	}
	if len(r.Members()) != 1 {
		t.Errorf("Members() = %v, want [A]", r.Members())
	}
}

// TestRemoveIdempotent verifies that removing an absent owner is a no-op.
func TestRemoveIdempotent(t *testing.T) {
	r := New(150, nil)
	r.Add(testNode("A"))
	r.Add(testNode("B"))

	r.Remove("B")
	slots := len(r.sorted)
	r.Remove("B")
	r.Remove("never-added")

	if got := len(r.sorted); got != slots {
		t.Errorf("repeat remove changed slot count: %d != %d", got, slots)
	}
	if !r.Contains("A") || r.Contains("B") {
		t.Errorf("membership after remove: %v", r.Members())
	}
}

// TestGetEmptyRing verifies lookups on an empty ring return nothing.
func TestGetEmptyRing(t *testing.T) {
	r := New(150, nil)
	if r.Get("anything") != nil {
		t.Error("Get on empty ring should return nil")
	}
	if r.GetN("anything", 2) != nil {
		t.Error("GetN on empty ring should return nil")
	}
}

// TestGetDeterministic verifies the same key always lands on the same node.
func TestGetDeterministic(t *testing.T) {
	r := New(150, nil)
	for _, owner := range []string{"A", "B", "C"} {
		r.Add(testNode(owner))
	}
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("offering-%d", i)
		first := r.Get(key)
		for j := 0; j < 10; j++ {
			if got := r.Get(key); got.Owner != first.Owner {
				t.Fatalf("Get(%q) flapped: %s then %s", key, first.Owner, got.Owner)
			}
		}
	}
}

// TestGetNDistinct verifies GetN returns at most min(n, nodes) distinct owners.
func TestGetNDistinct(t *testing.T) {
	r := New(150, nil)
	for _, owner := range []string{"A", "B", "C"} {
		r.Add(testNode(owner))
	}

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("offering-%d", i)
		for _, n := range []int{1, 2, 3, 5} {
			got := r.GetN(key, n)
			want := n
			if want > 3 {
				want = 3
			}
			if len(got) != want {
				t.Fatalf("GetN(%q, %d) returned %d nodes, want %d", key, n, len(got), want)
			}
			seen := make(map[string]bool)
			for _, node := range got {
				if seen[node.Owner] {
					t.Fatalf("GetN(%q, %d) returned duplicate owner %s", key, n, node.Owner)
				}
				seen[node.Owner] = true
			}
		}
	}
}

// TestStabilityUnderAddition verifies that adding a node never moves a key
// between two pre-existing nodes.
func TestStabilityUnderAddition(t *testing.T) {
	r := New(150, nil)
	for _, owner := range []string{"A", "B", "C"} {
		r.Add(testNode(owner))
	}

	before := make(map[string]string)
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("offering-%d", i)
		before[key] = r.Get(key).Owner
	}

	r.Add(testNode("D"))

	moved := 0
	for key, owner := range before {
		now := r.Get(key).Owner
		if now == owner {
			continue
		}
		if now != "D" {
			t.Errorf("key %q moved between pre-existing nodes: %s to %s", key, owner, now)
		}
		moved++
	}
	// Expected share is 1/4 of the key space; allow generous slack.
	if moved > 120 {
		t.Errorf("adding one node moved %d of 200 keys", moved)
	}
}

// TestUpdateStatusKeepsMembership verifies status changes do not alter slots.
func TestUpdateStatusKeepsMembership(t *testing.T) {
	r := New(150, nil)
	r.Add(testNode("A"))
	r.UpdateStatus("A", types.NodeStatusUnhealthy)

	if !r.Contains("A") {
		t.Error("UpdateStatus must not remove the node")
	}
	if got := r.Get("key"); got == nil || got.Status != types.NodeStatusUnhealthy {
		t.Error("status change not visible on lookup")
	}
}

// TestLive verifies Live returns node records sorted by owner.
func TestLive(t *testing.T) {
	r := New(10, nil)
	r.Add(testNode("C"))
	r.Add(testNode("A"))
	r.Add(testNode("B"))

	live := r.Live()
	if len(live) != 3 {
		t.Fatalf("Live() returned %d nodes, want 3", len(live))
	}
	for i, want := range []string{"A", "B", "C"} {
		if live[i].Owner != want {
			t.Errorf("Live()[%d] = %s, want %s", i, live[i].Owner, want)
		}
	}
}

// TestPositionOrdering verifies the 128-bit comparison is big-endian.
func TestPositionOrdering(t *testing.T) {
	a := position{hi: 1, lo: 0}
	b := position{hi: 0, lo: ^uint64(0)}
	if !b.less(a) {
		t.Error("high word must dominate the comparison")
	}
	if a.less(a) {
		t.Error("less must be strict")
	}
	if got := (position{hi: 0xff, lo: 1}).String(); len(got) != 32 {
		t.Errorf("String() = %q, want 32 hex chars", got)
	}
}
