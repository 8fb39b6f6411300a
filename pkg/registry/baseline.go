package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dataspace/catalogue-coordinator/pkg/types"
)

// baselineNode is the on-disk shape of a static node entry.
type baselineNode struct {
	Owner   string `json:"owner" yaml:"owner"`
	Address string `json:"address" yaml:"address"`
	NodeURL string `json:"node_url" yaml:"node_url"`
	Name    string `json:"name" yaml:"name"`
}

// loadBaselineNodes reads the static node file used when BASELINE_INFRA is
// set. JSON and YAML are accepted by extension.
func loadBaselineNodes(file string) ([]*types.Node, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading baseline nodes: %w", err)
	}

	var entries []baselineNode
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing baseline nodes: %w", err)
	}

	now := time.Now()
	nodes := make([]*types.Node, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Owner == "" || seen[e.Owner] {
			continue
		}
		seen[e.Owner] = true
		nodeURL := e.NodeURL
		if nodeURL == "" && e.Address != "" {
			nodeURL = fmt.Sprintf("%s:%d/catalogue", e.Address, cataloguePort)
		}
		nodes = append(nodes, &types.Node{
			Owner:     e.Owner,
			Address:   e.Address,
			NodeURL:   nodeURL,
			Name:      e.Name,
			Status:    types.NodeStatusHealthy,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return nodes, nil
}
