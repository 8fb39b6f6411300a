package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/kv"
	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

// cataloguePort is the conventional port a catalogue node listens on.
const cataloguePort = 3030

// LedgerClient is the slice of the ledger API the registry needs.
type LedgerClient interface {
	ListOfferings(ctx context.Context) ([]string, error)
	GetOffering(ctx context.Context, id string) (*types.OfferingMeta, error)
}

// Registry discovers catalogue nodes from the ledger, normalises their
// endpoints and persists them in the KV store.
type Registry struct {
	ledger LedgerClient
	store  kv.Store

	// baselineFile, when set, replaces ledger discovery with a static
	// node file.
	baselineFile string

	mu    sync.RWMutex
	cache []*types.Node
}

// New creates a registry backed by the ledger.
func New(ledger LedgerClient, store kv.Store) *Registry {
	return &Registry{ledger: ledger, store: store}
}

// NewBaseline creates a registry reading nodes from a static file instead
// of the ledger.
func NewBaseline(file string, store kv.Store) *Registry {
	return &Registry{baselineFile: file, store: store}
}

// DiscoverAndStore reconciles the node set with the ledger (or baseline
// file) and returns the current list. A ledger-level failure returns an
// empty list without clearing existing state.
func (r *Registry) DiscoverAndStore(ctx context.Context) ([]*types.Node, error) {
	logger := log.WithComponent("registry")

	var nodes []*types.Node
	if r.baselineFile != "" {
		var err error
		nodes, err = loadBaselineNodes(r.baselineFile)
		if err != nil {
			logger.Error().Err(err).Str("file", r.baselineFile).Msg("failed to load baseline nodes")
			return nil, err
		}
	} else {
		ids, err := r.ledger.ListOfferings(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("ledger discovery failed")
			return nil, err
		}
		nodes = r.nodesFromOfferings(ctx, ids)
	}

	for _, node := range nodes {
		if err := r.StoreNode(ctx, node); err != nil {
			logger.Error().Err(err).Str("owner", node.Owner).Msg("failed to persist node")
		}
	}

	r.mu.Lock()
	r.cache = nodes
	r.mu.Unlock()

	logger.Info().Int("count", len(nodes)).Msg("node discovery complete")
	return nodes, nil
}

// nodesFromOfferings turns offering metadata into the de-duplicated node
// set. A second offering by the same owner is ignored for node purposes;
// a single metadata fetch failure is logged and skipped.
func (r *Registry) nodesFromOfferings(ctx context.Context, ids []string) []*types.Node {
	logger := log.WithComponent("registry")
	seen := make(map[string]bool)
	var nodes []*types.Node

	for _, id := range ids {
		meta, err := r.ledger.GetOffering(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Str("offering_id", id).Msg("skipping offering metadata")
			continue
		}
		if meta.Owner == "" || seen[meta.Owner] {
			continue
		}
		node, err := NodeFromMeta(meta)
		if err != nil {
			logger.Warn().Err(err).Str("offering_id", id).Msg("skipping unparseable node endpoint")
			continue
		}
		seen[meta.Owner] = true
		nodes = append(nodes, node)
	}
	return nodes
}

// NodeFromMeta derives a node record from ledger offering metadata. The
// address is scheme+host of descriptionUri, with any port stripped; the
// catalogue URL follows the {address}:3030/catalogue convention.
func NodeFromMeta(meta *types.OfferingMeta) (*types.Node, error) {
	u, err := url.Parse(meta.DescriptionURI)
	if err != nil {
		return nil, fmt.Errorf("parsing descriptionUri: %w", err)
	}
	host := u.Hostname()
	// Some ledgers publish host:port:port endpoints; keep the host only.
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	if u.Scheme == "" || host == "" {
		return nil, fmt.Errorf("descriptionUri %q has no usable scheme/host", meta.DescriptionURI)
	}

	now := time.Now()
	address := fmt.Sprintf("%s://%s", u.Scheme, host)
	return &types.Node{
		Owner:     meta.Owner,
		Address:   address,
		NodeURL:   fmt.Sprintf("%s:%d/catalogue", address, cataloguePort),
		Name:      meta.Name,
		Status:    types.NodeStatusHealthy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// List returns the cached node list, populating it by discovery on empty.
func (r *Registry) List(ctx context.Context) ([]*types.Node, error) {
	r.mu.RLock()
	cached := r.cache
	r.mu.RUnlock()
	if len(cached) > 0 {
		return cached, nil
	}
	return r.DiscoverAndStore(ctx)
}

// StoreNode upserts node:{owner} and adds the owner to all_nodes.
func (r *Registry) StoreNode(ctx context.Context, node *types.Node) error {
	fields := map[string]string{
		"owner":      node.Owner,
		"address":    node.Address,
		"node_url":   node.NodeURL,
		"name":       node.Name,
		"status":     string(node.Status),
		"last_error": node.LastError,
		"created_at": node.CreatedAt.Format(time.RFC3339),
		"updated_at": node.UpdatedAt.Format(time.RFC3339),
	}
	if err := r.store.HSet(ctx, kv.NodePrefix+node.Owner, fields); err != nil {
		return fmt.Errorf("storing node record: %w", err)
	}
	if err := r.store.SAdd(ctx, kv.KeyAllNodes, node.Owner); err != nil {
		return fmt.Errorf("indexing node: %w", err)
	}
	return nil
}

// LoadNode reads node:{owner} back from the KV store.
func (r *Registry) LoadNode(ctx context.Context, owner string) (*types.Node, error) {
	fields, err := r.store.HGetAll(ctx, kv.NodePrefix+owner)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, kv.ErrNotFound{Key: kv.NodePrefix + owner}
	}
	node := &types.Node{
		Owner:     fields["owner"],
		Address:   fields["address"],
		NodeURL:   fields["node_url"],
		Name:      fields["name"],
		Status:    types.NodeStatus(fields["status"]),
		LastError: fields["last_error"],
	}
	if t, err := time.Parse(time.RFC3339, fields["created_at"]); err == nil {
		node.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, fields["updated_at"]); err == nil {
		node.UpdatedAt = t
	}
	return node, nil
}

// LoadAll rebuilds the node set from all_nodes and the node records. Used
// on warm boot to re-generate ring slots from live members.
func (r *Registry) LoadAll(ctx context.Context) ([]*types.Node, error) {
	owners, err := r.store.SMembers(ctx, kv.KeyAllNodes)
	if err != nil {
		return nil, err
	}
	logger := log.WithComponent("registry")
	var nodes []*types.Node
	for _, owner := range owners {
		node, err := r.LoadNode(ctx, owner)
		if err != nil {
			// all_nodes disagrees with node:*; log and self-heal on the
			// next ledger read.
			logger.Warn().Err(err).Str("owner", owner).Msg("node index entry without record")
			continue
		}
		nodes = append(nodes, node)
	}
	if len(nodes) > 0 {
		r.mu.Lock()
		r.cache = nodes
		r.mu.Unlock()
	}
	return nodes, nil
}

// RemoveNode deletes the node record and its index entry. Called only
// after grace-period expiry.
func (r *Registry) RemoveNode(ctx context.Context, owner string) error {
	if err := r.store.SRem(ctx, kv.KeyAllNodes, owner); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, kv.NodePrefix+owner); err != nil {
		return err
	}
	r.mu.Lock()
	kept := r.cache[:0]
	for _, n := range r.cache {
		if n.Owner != owner {
			kept = append(kept, n)
		}
	}
	r.cache = kept
	r.mu.Unlock()
	return nil
}

// UpdateStatus persists a status change on the node record.
func (r *Registry) UpdateStatus(ctx context.Context, owner string, status types.NodeStatus, reason string) error {
	return r.store.HSet(ctx, kv.NodePrefix+owner, map[string]string{
		"status":     string(status),
		"last_error": reason,
		"updated_at": time.Now().Format(time.RFC3339),
	})
}
