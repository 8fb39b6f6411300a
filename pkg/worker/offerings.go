package worker

import (
	"context"

	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

// OfferingProcessor is the placement driver surface the adapters wrap.
type OfferingProcessor interface {
	Process(ctx context.Context, id string, meta *types.OfferingMeta) (bool, error)
}

// SubmitOfferingProcessing dispatches one offering placement to the pool.
func (p *Pool) SubmitOfferingProcessing(proc OfferingProcessor, id string, meta *types.OfferingMeta) string {
	return p.Submit(func(ctx context.Context) (interface{}, error) {
		ok, err := proc.Process(ctx, id, meta)
		if err != nil {
			return nil, err
		}
		return ok, nil
	})
}

// SubmitBulkOfferingProcessing dispatches many placements; ids preserve
// input order.
func (p *Pool) SubmitBulkOfferingProcessing(proc OfferingProcessor, metas []*types.OfferingMeta) []string {
	ids := make([]string, 0, len(metas))
	for _, meta := range metas {
		if meta.ID == "" {
			continue
		}
		ids = append(ids, p.SubmitOfferingProcessing(proc, meta.ID, meta))
	}
	return ids
}
