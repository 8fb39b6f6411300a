package metrics

import (
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/events"
)

// NodeCounter reports node counts by status; implemented by the health
// supervisor.
type NodeCounter interface {
	Summary() (active int, down int)
}

// RingCounter reports ring membership; implemented by the hash ring.
type RingCounter interface {
	Members() []string
}

// Collector refreshes cluster gauges periodically and counts events as
// they arrive.
type Collector struct {
	nodes  NodeCounter
	ring   RingCounter
	broker *events.Broker
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(nodes NodeCounter, ring RingCounter, broker *events.Broker) *Collector {
	return &Collector{
		nodes:  nodes,
		ring:   ring,
		broker: broker,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	sub := c.broker.Subscribe()
	ticker := time.NewTicker(15 * time.Second)

	go func() {
		defer ticker.Stop()
		c.collect()

		for {
			select {
			case event, ok := <-sub:
				if !ok {
					return
				}
				c.count(event)
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				c.broker.Unsubscribe(sub)
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	active, down := c.nodes.Summary()
	NodesTotal.WithLabelValues("healthy").Set(float64(active))
	NodesTotal.WithLabelValues("unhealthy").Set(float64(down))
	RingMembers.Set(float64(len(c.ring.Members())))
}

func (c *Collector) count(event *events.Event) {
	switch event.Type {
	case events.EventOfferingPlaced:
		PlacementsTotal.WithLabelValues("success").Inc()
	case events.EventOfferingFailed:
		PlacementsTotal.WithLabelValues("failure").Inc()
	case events.EventNodeDead, events.EventNodeRecovered, events.EventNodeJoined, events.EventNodeSuspect:
		c.collect()
	}
}
