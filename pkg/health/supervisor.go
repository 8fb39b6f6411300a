package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/events"
	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/registry"
	"github.com/dataspace/catalogue-coordinator/pkg/ring"
	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

// Redistributor moves a dead node's offerings onto live targets.
type Redistributor interface {
	Redistribute(ctx context.Context, owner string) (moved, failed int, err error)
}

// Supervisor drives node discovery and the health state machine.
//
// A node is healthy until a probe fails, suspect from the first failure,
// and dead once probes have kept failing for a full grace period. Death is
// the only transition that mutates the ring; redistribution runs at death
// and again on later cycles while the dead node's placement set is
// non-empty. Both run under a single lock so two nodes dying in the same
// cycle redistribute one at a time.
type Supervisor struct {
	registry *registry.Registry
	ring     *ring.Ring
	mover    Redistributor
	broker   *events.Broker
	prober   Prober

	interval time.Duration
	grace    time.Duration
	now      func() time.Time

	// deathMu serialises the dead-node transition.
	deathMu sync.Mutex

	mu sync.Mutex
	// suspects maps an owner to its first failed probe time; down holds the
	// owners past their grace period.
	suspects map[string]time.Time
	down     map[string]*types.Node
}

// NewSupervisor wires the supervisor. The broker and mover may be nil in
// tests.
func NewSupervisor(reg *registry.Registry, r *ring.Ring, mover Redistributor, broker *events.Broker, prober Prober, interval, grace time.Duration) *Supervisor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if grace <= 0 {
		grace = 60 * time.Second
	}
	return &Supervisor{
		registry: reg,
		ring:     r,
		mover:    mover,
		broker:   broker,
		prober:   prober,
		interval: interval,
		grace:    grace,
		now:      time.Now,
		suspects: make(map[string]time.Time),
		down:     make(map[string]*types.Node),
	}
}

// Run supervises until the context is cancelled. The first cycle runs
// immediately.
func (s *Supervisor) Run(ctx context.Context) error {
	logger := log.WithComponent("health")
	logger.Info().Dur("interval", s.interval).Dur("grace", s.grace).Msg("health supervisor started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Cycle(ctx)
		select {
		case <-ctx.Done():
			logger.Info().Msg("health supervisor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs one supervision pass: refresh the node set, probe every node,
// and apply the state machine.
func (s *Supervisor) Cycle(ctx context.Context) {
	logger := log.WithComponent("health")

	nodes, err := s.registry.DiscoverAndStore(ctx)
	if err != nil {
		// Keep supervising the last known set when the ledger is away.
		logger.Warn().Err(err).Msg("discovery failed, probing cached nodes")
		nodes, err = s.registry.List(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("no node set available, skipping cycle")
			return
		}
	}

	for _, node := range nodes {
		if s.isDown(node.Owner) {
			continue
		}
		if !s.ring.Contains(node.Owner) {
			s.ring.Add(node)
			s.publish(events.EventNodeJoined, node.Owner, "")
		}
	}

	var wg sync.WaitGroup
	for _, node := range nodes {
		wg.Add(1)
		go func(node *types.Node) {
			defer wg.Done()
			s.apply(ctx, node, s.prober.Probe(ctx, node))
		}(node)
	}
	wg.Wait()
}

// apply advances one node through the state machine from a probe result.
func (s *Supervisor) apply(ctx context.Context, node *types.Node, result Result) {
	logger := log.WithOwner(node.Owner)

	if result.Healthy {
		s.mu.Lock()
		_, wasSuspect := s.suspects[node.Owner]
		_, wasDown := s.down[node.Owner]
		delete(s.suspects, node.Owner)
		delete(s.down, node.Owner)
		s.mu.Unlock()

		switch {
		case wasDown:
			s.recover(ctx, node)
		case wasSuspect:
			logger.Info().Msg("node probe recovered within grace period")
		}
		return
	}

	s.mu.Lock()
	if _, down := s.down[node.Owner]; down {
		s.mu.Unlock()
		// A death-time redistribution can partially fail; leftovers in the
		// node's placement set move on later cycles while it stays down.
		s.drainLeftovers(ctx, node)
		return
	}
	firstFailure, suspect := s.suspects[node.Owner]
	if !suspect {
		s.suspects[node.Owner] = s.now()
		s.mu.Unlock()
		logger.Warn().Str("reason", result.Reason).Msg("node suspect, grace period started")
		s.publish(events.EventNodeSuspect, node.Owner, result.Reason)
		return
	}
	expired := s.now().Sub(firstFailure) >= s.grace
	s.mu.Unlock()

	if expired {
		s.declareDead(ctx, node, result.Reason)
	} else {
		logger.Debug().Str("reason", result.Reason).Msg("node still suspect")
	}
}

// declareDead marks the node unhealthy, moves its offerings, and removes it
// from the ring.
func (s *Supervisor) declareDead(ctx context.Context, node *types.Node, reason string) {
	s.deathMu.Lock()
	defer s.deathMu.Unlock()

	s.mu.Lock()
	if _, down := s.down[node.Owner]; down {
		s.mu.Unlock()
		return
	}
	s.down[node.Owner] = node
	delete(s.suspects, node.Owner)
	s.mu.Unlock()

	logger := log.WithOwner(node.Owner)
	logger.Error().Str("reason", reason).Msg("node declared dead")

	node.Status = types.NodeStatusUnhealthy
	node.LastError = reason
	if err := s.registry.UpdateStatus(ctx, node.Owner, types.NodeStatusUnhealthy, reason); err != nil {
		logger.Error().Err(err).Msg("failed to persist unhealthy status")
	}
	s.ring.UpdateStatus(node.Owner, types.NodeStatusUnhealthy)

	// Order matters: offerings move while the dead node's records are still
	// readable, then the ring stops routing to it.
	if s.mover != nil {
		if _, _, err := s.mover.Redistribute(ctx, node.Owner); err != nil {
			logger.Error().Err(err).Msg("redistribution failed")
		}
	}
	s.ring.Remove(node.Owner)
	s.publish(events.EventNodeDead, node.Owner, reason)
}

// drainLeftovers retries redistribution for a node that is already down.
// Redistribute is a no-op once the node's placement set is empty.
func (s *Supervisor) drainLeftovers(ctx context.Context, node *types.Node) {
	if s.mover == nil {
		return
	}
	s.deathMu.Lock()
	defer s.deathMu.Unlock()

	moved, failed, err := s.mover.Redistribute(ctx, node.Owner)
	logger := log.WithOwner(node.Owner)
	if err != nil {
		logger.Error().Err(err).Msg("leftover redistribution failed")
		return
	}
	if moved > 0 || failed > 0 {
		logger.Info().Int("moved", moved).Int("failed", failed).Msg("redistributed leftovers from dead node")
	}
}

// recover puts a previously dead node back in service.
func (s *Supervisor) recover(ctx context.Context, node *types.Node) {
	logger := log.WithOwner(node.Owner)
	logger.Info().Msg("node recovered")

	node.Status = types.NodeStatusHealthy
	node.LastError = ""
	node.UpdatedAt = s.now()
	if err := s.registry.StoreNode(ctx, node); err != nil {
		logger.Error().Err(err).Msg("failed to persist recovered node")
	}
	s.ring.Add(node)
	s.publish(events.EventNodeRecovered, node.Owner, "")
}

func (s *Supervisor) isDown(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, down := s.down[owner]
	return down
}

// Summary returns active and down node counts.
func (s *Supervisor) Summary() (active, down int) {
	summary := s.NodeSummary()
	return summary.ActiveCount, summary.DownCount
}

// NodeSummary reports the supervisor's current view of the cluster.
func (s *Supervisor) NodeSummary() *types.NodeSummary {
	activeNodes := s.ring.Members()

	s.mu.Lock()
	downNodes := make([]string, 0, len(s.down))
	for owner := range s.down {
		downNodes = append(downNodes, owner)
	}
	s.mu.Unlock()
	sort.Strings(downNodes)

	return &types.NodeSummary{
		ActiveCount: len(activeNodes),
		DownCount:   len(downNodes),
		ActiveNodes: activeNodes,
		DownNodes:   downNodes,
	}
}

func (s *Supervisor) publish(eventType events.EventType, owner, message string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{
		Type:     eventType,
		Message:  message,
		Metadata: map[string]string{"owner": owner},
	})
}
