package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

// Result is the outcome of one liveness probe.
type Result struct {
	Healthy    bool
	StatusCode int
	Reason     string
	Latency    time.Duration
}

// Prober checks whether a catalogue node is alive.
type Prober interface {
	Probe(ctx context.Context, node *types.Node) Result
}

// HTTPChecker probes a node's catalogue test endpoint. A node is alive iff
// the probe returns HTTP 200 within the timeout.
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker creates a prober with the given per-probe timeout.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{client: &http.Client{Timeout: timeout}}
}

// Probe issues GET {node_url}/test.
func (c *HTTPChecker) Probe(ctx context.Context, node *types.Node) Result {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, node.NodeURL+"/test", nil)
	if err != nil {
		return Result{Reason: err.Error(), Latency: time.Since(start)}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Reason: err.Error(), Latency: time.Since(start)}
	}
	defer resp.Body.Close()

	result := Result{StatusCode: resp.StatusCode, Latency: time.Since(start)}
	if resp.StatusCode == http.StatusOK {
		result.Healthy = true
	} else {
		result.Reason = fmt.Sprintf("probe returned HTTP %d", resp.StatusCode)
	}
	return result
}
