/*
Package types defines the core data structures shared across the coordinator.

The main types are:

  - Node: a catalogue node keyed by its ledger owner DID, with the derived
    address and catalogue URL
  - OfferingMeta: the ledger-level offering record carrying descriptionUri
  - Offering: a fetched JSON-LD self-description
  - PlacementStatus: where an offering is currently assigned

All types are JSON-serializable; the KV store persists them as JSON text.
Enumerations use typed string constants. Mutations are synchronized by
callers: the registry creates nodes, the health supervisor mutates status,
and the placement driver owns the offering records.
*/
package types
