// Package dlt is the read-only client for the distributed-ledger HTTP API:
// the offerings index, per-offering metadata, and self-description
// downloads. Transient failures (timeouts, 5xx, 429) retry with bounded
// exponential backoff; other 4xx responses fail immediately.
package dlt
