package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
	"github.com/dataspace/catalogue-coordinator/pkg/metrics"
	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

const queryTimeout = 10 * time.Second

// ErrNoNodes is returned when no live node can answer a query.
var ErrNoNodes = errors.New("no live catalogue nodes")

// NodeSource yields the live nodes to federate over.
type NodeSource interface {
	Live() []*types.Node
}

// Results is the SPARQL JSON results format.
type Results struct {
	Head    Head     `json:"head"`
	Results Bindings `json:"results"`
}

type Head struct {
	Vars []string `json:"vars"`
}

type Bindings struct {
	Bindings []map[string]interface{} `json:"bindings"`
}

// Engine answers a query by posting it to every live node and merging the
// bindings. A node that errors or times out contributes nothing; it never
// fails the whole query.
type Engine struct {
	nodes NodeSource
	http  *http.Client
	// timeout bounds each per-node request.
	timeout time.Duration
}

// NewEngine creates a fan-out federation engine.
func NewEngine(nodes NodeSource) *Engine {
	return &Engine{
		nodes:   nodes,
		http:    &http.Client{Timeout: queryTimeout},
		timeout: queryTimeout,
	}
}

// Query fans the query out and merges the answers. Binding order across
// nodes is unspecified; the multiset equals the union of per-node results.
func (e *Engine) Query(ctx context.Context, query string) (*Results, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FederatedQueryDuration)
	metrics.FederatedQueriesTotal.Inc()

	nodes := e.nodes.Live()
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	contributions := make([][]map[string]interface{}, len(nodes))
	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node *types.Node) {
			defer wg.Done()
			contributions[i] = e.queryNode(ctx, node, query)
		}(i, node)
	}
	wg.Wait()

	merged := &Results{Head: Head{Vars: []string{}}, Results: Bindings{Bindings: []map[string]interface{}{}}}
	for _, bindings := range contributions {
		merged.Results.Bindings = append(merged.Results.Bindings, bindings...)
	}
	merged.Head.Vars = SelectVars(query)
	if len(merged.Head.Vars) == 0 {
		merged.Head.Vars = varsFromBindings(merged.Results.Bindings)
	}
	return merged, nil
}

// queryNode posts the query to one node. Any failure yields an empty
// contribution.
func (e *Engine) queryNode(ctx context.Context, node *types.Node, query string) []map[string]interface{} {
	logger := log.WithOwner(node.Owner)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, node.NodeURL+"/sparql", bytes.NewBufferString(query))
	if err != nil {
		logger.Error().Err(err).Msg("building federated query request")
		return nil
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := e.http.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("node unreachable for federated query")
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Warn().Int("status", resp.StatusCode).Msg("node rejected federated query")
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	var results Results
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		logger.Warn().Err(err).Msg("undecodable federated query response")
		return nil
	}
	return results.Results.Bindings
}

var selectProjection = regexp.MustCompile(`(?is)\bselect\b(.*?)\bwhere\b`)
var varName = regexp.MustCompile(`\?([A-Za-z_][A-Za-z0-9_]*)`)

// SelectVars extracts the projected variable names from a SELECT query.
// SELECT * and non-SELECT forms yield nil.
func SelectVars(query string) []string {
	m := selectProjection.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	seen := make(map[string]bool)
	var vars []string
	for _, match := range varName.FindAllStringSubmatch(m[1], -1) {
		if seen[match[1]] {
			continue
		}
		seen[match[1]] = true
		vars = append(vars, match[1])
	}
	return vars
}

// varsFromBindings is the SELECT * fallback: the sorted union of bound
// variable names.
func varsFromBindings(bindings []map[string]interface{}) []string {
	seen := make(map[string]bool)
	for _, binding := range bindings {
		for name := range binding {
			seen[name] = true
		}
	}
	vars := make([]string, 0, len(seen))
	for name := range seen {
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return vars
}
