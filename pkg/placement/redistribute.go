package placement

import (
	"context"
	"encoding/json"

	"github.com/dataspace/catalogue-coordinator/pkg/events"
	"github.com/dataspace/catalogue-coordinator/pkg/kv"
	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/metrics"
)

// Redistribute moves every offering recorded against a dead node onto live
// targets. The caller must have already marked the node unhealthy so the
// ring no longer selects it.
//
// Conservation: each offering either lands on a new node with its records
// updated, or stays in node_offerings:{owner} for the next cycle. The
// source set is deleted only once empty.
func (d *Driver) Redistribute(ctx context.Context, owner string) (moved, failed int, err error) {
	logger := log.WithOwner(owner)
	sourceKey := kv.NodeOfferingsPrefix + owner

	ids, err := d.store.SMembers(ctx, sourceKey)
	if err != nil {
		if kv.IsNotFound(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	if len(ids) == 0 {
		d.store.Delete(ctx, sourceKey)
		return 0, 0, nil
	}
	logger.Info().Int("offerings", len(ids)).Msg("redistributing offerings from dead node")

	for _, id := range ids {
		if ok := d.redistributeOne(ctx, id, owner); ok {
			if err := d.store.SRem(ctx, sourceKey, id); err != nil {
				log.WithOfferingID(id).Error().Err(err).Msg("failed to clear source record")
			}
			moved++
		} else {
			failed++
		}
	}

	if failed == 0 {
		d.store.Delete(ctx, sourceKey)
	}
	metrics.RedistributionsTotal.Add(float64(moved))
	d.publish(events.EventOfferingRedistributed, "", owner)
	logger.Info().Int("moved", moved).Int("failed", failed).Msg("redistribution finished")
	return moved, failed, nil
}

// redistributeOne replays a single stored offering onto fresh targets.
func (d *Driver) redistributeOne(ctx context.Context, id, deadOwner string) bool {
	logger := log.WithOfferingID(id)

	blob, err := d.store.Get(ctx, kv.OfferingPrefix+id)
	if err != nil {
		logger.Error().Err(err).Msg("stored offering payload missing, skipping")
		return false
	}
	payload := json.RawMessage(blob)
	var stored storedOffering
	if json.Unmarshal([]byte(blob), &stored) == nil && len(stored.Payload) > 0 {
		payload = stored.Payload
	}

	targets := d.ring.GetN(id, d.replicas)
	if len(targets) == 0 {
		logger.Warn().Msg("no live targets for redistribution")
		return false
	}

	placed := 0
	for _, target := range targets {
		if target.Owner == deadOwner {
			continue
		}
		if err := d.postToNode(ctx, target, payload); err != nil {
			logger.Error().Err(err).Str("owner", target.Owner).Msg("redistribution post failed")
			continue
		}
		placed++
		if err := d.recordPlacement(ctx, id, target.Owner, payload); err != nil {
			logger.Error().Err(err).Str("owner", target.Owner).Msg("failed to record redistributed placement")
		}
	}
	return placed > 0
}
