package placement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/dataspace/catalogue-coordinator/pkg/events"
	"github.com/dataspace/catalogue-coordinator/pkg/kv"
	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/metrics"
	"github.com/dataspace/catalogue-coordinator/pkg/ring"
	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

const postTimeout = 30 * time.Second

// Fetcher downloads an offering's full self-description.
type Fetcher interface {
	FetchDescription(ctx context.Context, uri string) (json.RawMessage, error)
}

// Driver places offerings onto catalogue nodes and keeps the placement
// records in the KV store. It is the sole writer of the offering keys.
type Driver struct {
	fetcher  Fetcher
	ring     *ring.Ring
	store    kv.Store
	broker   *events.Broker
	replicas int
	http     *http.Client

	// processed records ids already handed to the pool in this process.
	mu        sync.Mutex
	processed map[string]bool
}

// NewDriver creates a placement driver with N-replica placement.
func NewDriver(fetcher Fetcher, r *ring.Ring, store kv.Store, broker *events.Broker, replicas int) *Driver {
	if replicas <= 0 {
		replicas = 2
	}
	return &Driver{
		fetcher:   fetcher,
		ring:      r,
		store:     store,
		broker:    broker,
		replicas:  replicas,
		http:      &http.Client{Timeout: postTimeout},
		processed: make(map[string]bool),
	}
}

// Process places one offering: fetch the self-description, pick N targets
// on the ring, post to each, record the placement. Returns true iff at
// least one replica landed.
func (d *Driver) Process(ctx context.Context, id string, meta *types.OfferingMeta) (placed bool, err error) {
	logger := log.WithOfferingID(id)
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PlacementDuration)

	// A failed placement is forgotten so the next sweep retries it.
	defer func() {
		if !placed {
			d.Forget(id)
		}
	}()

	if meta == nil || meta.DescriptionURI == "" {
		d.publish(events.EventOfferingFailed, id, "missing descriptionUri")
		return false, fmt.Errorf("offering %s has no descriptionUri", id)
	}

	payload, err := d.fetcher.FetchDescription(ctx, meta.DescriptionURI)
	if err != nil {
		d.publish(events.EventOfferingFailed, id, err.Error())
		return false, err
	}
	if err := ValidateListing(payload); err != nil {
		d.publish(events.EventOfferingFailed, id, err.Error())
		return false, fmt.Errorf("offering %s rejected: %w", id, err)
	}

	// The target set is computed once and stays stable for this call even
	// if the ring changes underneath.
	targets := d.ring.GetN(id, d.replicas)
	if len(targets) == 0 {
		d.publish(events.EventOfferingFailed, id, "no target nodes")
		return false, fmt.Errorf("no target nodes for offering %s", id)
	}

	stored := 0
	for _, target := range targets {
		if err := d.postToNode(ctx, target, payload); err != nil {
			logger.Error().Err(err).Str("owner", target.Owner).Msg("failed to store offering on node")
			continue
		}
		stored++
		if err := d.recordPlacement(ctx, id, target.Owner, payload); err != nil {
			logger.Error().Err(err).Str("owner", target.Owner).Msg("failed to record placement")
		}
	}

	if stored == 0 {
		d.publish(events.EventOfferingFailed, id, "no replica stored")
		return false, fmt.Errorf("offering %s not stored on any target", id)
	}
	logger.Info().Int("stored", stored).Int("targets", len(targets)).Msg("offering placed")
	d.publish(events.EventOfferingPlaced, id, "")
	return true, nil
}

// ProcessMany places a batch sequentially, returning per-offering success.
func (d *Driver) ProcessMany(ctx context.Context, metas []*types.OfferingMeta) map[string]bool {
	results := make(map[string]bool, len(metas))
	for _, meta := range metas {
		if meta.ID == "" {
			continue
		}
		ok, err := d.Process(ctx, meta.ID, meta)
		if err != nil {
			log.WithOfferingID(meta.ID).Error().Err(err).Msg("placement failed")
		}
		results[meta.ID] = ok
	}
	return results
}

// Status reports where an offering currently lives.
func (d *Driver) Status(ctx context.Context, id string) (*types.PlacementStatus, error) {
	owner, err := d.store.Get(ctx, kv.OfferingNodePrefix+id)
	if err != nil {
		return nil, err
	}
	status := &types.PlacementStatus{
		OfferingID:   id,
		AssignedNode: owner,
		State:        types.PlacementMissing,
	}
	if blob, err := d.store.Get(ctx, kv.OfferingPrefix+id); err == nil {
		var stored storedOffering
		if json.Unmarshal([]byte(blob), &stored) == nil && len(stored.Payload) > 0 {
			status.Payload = stored.Payload
		} else {
			status.Payload = json.RawMessage(blob)
		}
		status.State = types.PlacementStored
	}
	return status, nil
}

// FilterNew returns the ids not yet handed to the pool by this process and
// marks them submitted. The set is authoritative only for this process's
// lifetime; ids whose placement fails are forgotten again, so every sweep
// retries them until one lands.
func (d *Driver) FilterNew(ids []string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var fresh []string
	for _, id := range ids {
		if d.processed[id] {
			continue
		}
		d.processed[id] = true
		fresh = append(fresh, id)
	}
	return fresh
}

// Forget clears an id from the processed set so a later sweep resubmits it.
func (d *Driver) Forget(id string) {
	d.mu.Lock()
	delete(d.processed, id)
	d.mu.Unlock()
}

func (d *Driver) postToNode(ctx context.Context, node *types.Node, payload json.RawMessage) error {
	url := node.NodeURL + "/manager"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/ld+json")
	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("node %s returned HTTP %d", node.Owner, resp.StatusCode)
	}
	return nil
}

// storedOffering is the persisted offering:{id} value.
type storedOffering struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
}

// recordPlacement writes the three placement keys. Each write is
// idempotent; a transient KV failure retries with backoff.
func (d *Driver) recordPlacement(ctx context.Context, id, owner string, payload json.RawMessage) error {
	blob, err := json.Marshal(storedOffering{Payload: payload, StoredAt: time.Now()})
	if err != nil {
		return err
	}
	return retry.Do(
		func() error {
			if err := d.store.Set(ctx, kv.OfferingPrefix+id, string(blob)); err != nil {
				return err
			}
			if err := d.store.SAdd(ctx, kv.NodeOfferingsPrefix+owner, id); err != nil {
				return err
			}
			return d.store.Set(ctx, kv.OfferingNodePrefix+id, owner)
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

func (d *Driver) publish(eventType events.EventType, id, message string) {
	if d.broker == nil {
		return
	}
	d.broker.Publish(&events.Event{
		Type:     eventType,
		Message:  message,
		Metadata: map[string]string{"offering_id": id},
	})
}
