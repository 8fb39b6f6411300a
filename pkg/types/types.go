package types

import (
	"encoding/json"
	"time"
)

// Node represents a catalogue node discovered from the ledger.
type Node struct {
	// Owner is the stable ledger DID of the node operator and the node's
	// identity everywhere in the coordinator.
	Owner string `json:"owner"`

	// Address is scheme+host of the node, without port.
	Address string `json:"address"`

	// NodeURL is the catalogue base URL, conventionally {address}:3030/catalogue.
	NodeURL string `json:"node_url"`

	Name   string     `json:"name"`
	Status NodeStatus `json:"status"`

	// LastError holds the most recent health probe failure reason.
	LastError string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeStatus represents the current state of a catalogue node
type NodeStatus string

const (
	NodeStatusHealthy   NodeStatus = "healthy"
	NodeStatusUnhealthy NodeStatus = "unhealthy"
)

// OfferingMeta is the ledger-level description of an offering, fetched
// from GET {DLT_BASE_URL}/offerings/{id}.
type OfferingMeta struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Owner          string   `json:"owner"`
	DescriptionURI string   `json:"descriptionUri"`
	Addresses      []string `json:"addresses,omitempty"`
}

// Offering is a fetched JSON-LD self-description tracked by the coordinator.
type Offering struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`

	// StoredAt is when the payload was last fetched and placed.
	StoredAt time.Time `json:"stored_at"`
}

// PlacementStatus describes where an offering currently lives.
type PlacementStatus struct {
	OfferingID   string          `json:"offering_id"`
	AssignedNode string          `json:"assigned_node"`
	Payload      json.RawMessage `json:"offering_data,omitempty"`
	State        PlacementState  `json:"status"`
}

// PlacementState reports whether the payload is present alongside the
// assignment record.
type PlacementState string

const (
	PlacementStored  PlacementState = "stored"
	PlacementMissing PlacementState = "missing"
)

// NodeSummary is the supervisor's view of cluster health.
type NodeSummary struct {
	ActiveCount int      `json:"active_count"`
	DownCount   int      `json:"down_count"`
	ActiveNodes []string `json:"active_nodes"`
	DownNodes   []string `json:"down_nodes"`
}
