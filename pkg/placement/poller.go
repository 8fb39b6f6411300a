package placement

import (
	"context"
	"fmt"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/types"
	"github.com/dataspace/catalogue-coordinator/pkg/worker"
)

// Ledger is the discovery surface the poller reads.
type Ledger interface {
	ListOfferings(ctx context.Context) ([]string, error)
	GetOffering(ctx context.Context, id string) (*types.OfferingMeta, error)
}

// Summary reports the outcome of a pending-offerings sweep.
type Summary struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Details    map[string]string `json:"details"`
}

// Poller periodically sweeps the ledger and hands unseen offerings to the
// worker pool for placement.
type Poller struct {
	ledger   Ledger
	driver   *Driver
	pool     *worker.Pool
	interval time.Duration
	// waitTimeout bounds how long a synchronous sweep waits for results.
	waitTimeout time.Duration
}

// NewPoller creates a ledger sweep loop with the given interval.
func NewPoller(ledger Ledger, driver *Driver, pool *worker.Pool, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		ledger:      ledger,
		driver:      driver,
		pool:        pool,
		interval:    interval,
		waitTimeout: 2 * time.Minute,
	}
}

// Run sweeps the ledger until the context is cancelled. Individual sweep
// failures are logged and the loop continues.
func (p *Poller) Run(ctx context.Context) error {
	logger := log.WithComponent("poller")
	logger.Info().Dur("interval", p.interval).Msg("offering poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Sweep(ctx); err != nil {
			logger.Error().Err(err).Msg("ledger sweep failed")
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("offering poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep submits every unseen ledger offering to the pool and returns the
// submitted task ids keyed by offering id. It does not wait for results.
func (p *Poller) Sweep(ctx context.Context) (map[string]string, error) {
	ids, err := p.ledger.ListOfferings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ledger offerings: %w", err)
	}

	fresh := p.driver.FilterNew(ids)
	if len(fresh) == 0 {
		return nil, nil
	}
	log.WithComponent("poller").Info().Int("fresh", len(fresh)).Int("total", len(ids)).Msg("submitting new offerings")

	submitted := make(map[string]string, len(fresh))
	for _, id := range fresh {
		meta, err := p.ledger.GetOffering(ctx, id)
		if err != nil {
			log.WithOfferingID(id).Error().Err(err).Msg("failed to fetch offering metadata, skipping")
			p.driver.Forget(id)
			continue
		}
		submitted[id] = p.pool.SubmitOfferingProcessing(p.driver, id, meta)
	}
	return submitted, nil
}

// ProcessPending performs a synchronous sweep: submit all unseen offerings
// and wait for their placements. Returns nil when nothing was pending.
func (p *Poller) ProcessPending(ctx context.Context) (*Summary, error) {
	submitted, err := p.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	if len(submitted) == 0 {
		return nil, nil
	}

	summary := &Summary{
		Total:   len(submitted),
		Details: make(map[string]string, len(submitted)),
	}
	for offeringID, taskID := range submitted {
		value, err := p.pool.Result(taskID, p.waitTimeout)
		switch {
		case err != nil:
			summary.Failed++
			summary.Details[offeringID] = err.Error()
		case value == true:
			summary.Successful++
			summary.Details[offeringID] = "placed"
		default:
			summary.Failed++
			summary.Details[offeringID] = "not placed"
		}
	}
	return summary, nil
}
