package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/kv"
	"github.com/dataspace/catalogue-coordinator/pkg/registry"
	"github.com/dataspace/catalogue-coordinator/pkg/ring"
	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

type fakeLedger struct {
	metas map[string]*types.OfferingMeta
}

func (f *fakeLedger) ListOfferings(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.metas))
	for id := range f.metas {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeLedger) GetOffering(ctx context.Context, id string) (*types.OfferingMeta, error) {
	return f.metas[id], nil
}

type scriptedProber struct {
	mu      sync.Mutex
	healthy map[string]bool
}

func (p *scriptedProber) set(owner string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy[owner] = ok
}

func (p *scriptedProber) Probe(ctx context.Context, node *types.Node) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy[node.Owner] {
		return Result{Healthy: true, StatusCode: 200}
	}
	return Result{Reason: "connection refused"}
}

type recordingMover struct {
	mu     sync.Mutex
	owners []string
}

func (m *recordingMover) Redistribute(ctx context.Context, owner string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners = append(m.owners, owner)
	return 1, 0, nil
}

func (m *recordingMover) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.owners...)
}

func newTestSupervisor(t *testing.T) (*Supervisor, *scriptedProber, *recordingMover, *ring.Ring, func(time.Duration)) {
	t.Helper()
	ledger := &fakeLedger{metas: map[string]*types.OfferingMeta{
		"o1": {ID: "o1", Owner: "A", DescriptionURI: "http://a.example.org/desc"},
		"o2": {ID: "o2", Owner: "B", DescriptionURI: "http://b.example.org/desc"},
	}}
	reg := registry.New(ledger, kv.NewMemory())
	r := ring.New(50, nil)
	prober := &scriptedProber{healthy: map[string]bool{"A": true, "B": true}}
	mover := &recordingMover{}

	s := NewSupervisor(reg, r, mover, nil, prober, 30*time.Second, 60*time.Second)
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		current = current.Add(d)
		mu.Unlock()
	}
	return s, prober, mover, r, advance
}

// TestHealthyCycleJoinsNodes verifies discovered nodes join the ring.
func TestHealthyCycleJoinsNodes(t *testing.T) {
	s, _, mover, r, _ := newTestSupervisor(t)
	s.Cycle(context.Background())

	if !r.Contains("A") || !r.Contains("B") {
		t.Fatalf("ring members after cycle: %v", r.Members())
	}
	if len(mover.calls()) != 0 {
		t.Errorf("healthy cycle triggered redistribution: %v", mover.calls())
	}
	summary := s.NodeSummary()
	if summary.ActiveCount != 2 || summary.DownCount != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

// TestGracePeriodHonesty verifies a failing node stays live for the full
// grace period and dies exactly once at expiry.
func TestGracePeriodHonesty(t *testing.T) {
	s, prober, mover, r, advance := newTestSupervisor(t)
	ctx := context.Background()

	s.Cycle(ctx)
	prober.set("B", false)

	// First failure: suspect, still live.
	s.Cycle(ctx)
	if !r.Contains("B") {
		t.Fatal("node removed before grace period expired")
	}

	// Half the grace period: still live.
	advance(30 * time.Second)
	s.Cycle(ctx)
	if !r.Contains("B") {
		t.Fatal("node removed mid grace period")
	}
	if len(mover.calls()) != 0 {
		t.Fatalf("redistribution before grace expiry: %v", mover.calls())
	}

	// Full grace period: dead.
	advance(30 * time.Second)
	s.Cycle(ctx)
	if r.Contains("B") {
		t.Fatal("node still on ring after grace expiry")
	}
	if calls := mover.calls(); len(calls) != 1 || calls[0] != "B" {
		t.Fatalf("redistribution calls = %v, want [B]", calls)
	}

	// Further failing cycles re-run only the leftover drain, never the
	// death transition: the node stays down and off the ring.
	advance(30 * time.Second)
	s.Cycle(ctx)
	if calls := mover.calls(); len(calls) != 2 || calls[1] != "B" {
		t.Errorf("calls after drain cycle = %v, want [B B]", calls)
	}
	if r.Contains("B") {
		t.Error("dead node back on ring without a healthy probe")
	}

	summary := s.NodeSummary()
	if summary.ActiveCount != 1 || summary.DownCount != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.DownNodes[0] != "B" {
		t.Errorf("down nodes = %v", summary.DownNodes)
	}
}

// TestRecoveryWithinGrace verifies a blip shorter than the grace period
// leaves the node untouched.
func TestRecoveryWithinGrace(t *testing.T) {
	s, prober, mover, r, advance := newTestSupervisor(t)
	ctx := context.Background()

	s.Cycle(ctx)
	prober.set("B", false)
	s.Cycle(ctx)
	advance(30 * time.Second)

	prober.set("B", true)
	s.Cycle(ctx)

	// A later failure must start a fresh grace period.
	prober.set("B", false)
	advance(45 * time.Second)
	s.Cycle(ctx)
	if r.Contains("B") == false {
		t.Fatal("fresh failure inherited the old grace window")
	}
	if len(mover.calls()) != 0 {
		t.Errorf("unexpected redistribution: %v", mover.calls())
	}
}

// scriptedMover replays a fixed sequence of redistribution outcomes.
type scriptedMover struct {
	mu      sync.Mutex
	results [][2]int
	n       int
}

func (m *scriptedMover) Redistribute(ctx context.Context, owner string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.n
	m.n++
	if i < len(m.results) {
		return m.results[i][0], m.results[i][1], nil
	}
	return 0, 0, nil
}

func (m *scriptedMover) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}

// TestLeftoverRedistributionRetries verifies offerings a death-time
// redistribution left behind move on later cycles while the node is down.
func TestLeftoverRedistributionRetries(t *testing.T) {
	s, prober, _, r, advance := newTestSupervisor(t)
	mover := &scriptedMover{results: [][2]int{{0, 2}, {2, 0}}}
	s.mover = mover
	ctx := context.Background()

	s.Cycle(ctx)
	prober.set("B", false)
	s.Cycle(ctx)
	advance(60 * time.Second)
	s.Cycle(ctx)
	if r.Contains("B") {
		t.Fatal("node should be dead")
	}
	if mover.count() != 1 {
		t.Fatalf("Redistribute calls at death = %d", mover.count())
	}

	// The death-time pass left two offerings behind; the next cycle moves
	// them.
	advance(30 * time.Second)
	s.Cycle(ctx)
	if mover.count() != 2 {
		t.Fatalf("leftovers never retried: calls = %d", mover.count())
	}

	// Drained set: later cycles stay safe no-ops while the node is down.
	advance(30 * time.Second)
	s.Cycle(ctx)
	if mover.count() != 3 {
		t.Fatalf("drain stopped while node down: calls = %d", mover.count())
	}
	if summary := s.NodeSummary(); summary.DownCount != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

// TestDeadNodeRecovers verifies a dead node is re-admitted once probes
// succeed again.
func TestDeadNodeRecovers(t *testing.T) {
	s, prober, _, r, advance := newTestSupervisor(t)
	ctx := context.Background()

	s.Cycle(ctx)
	prober.set("B", false)
	s.Cycle(ctx)
	advance(60 * time.Second)
	s.Cycle(ctx)
	if r.Contains("B") {
		t.Fatal("node should be dead")
	}

	prober.set("B", true)
	s.Cycle(ctx)
	if !r.Contains("B") {
		t.Fatal("recovered node not re-admitted to ring")
	}
	summary := s.NodeSummary()
	if summary.ActiveCount != 2 || summary.DownCount != 0 {
		t.Errorf("summary after recovery = %+v", summary)
	}
}
