/*
Package placement assigns offerings to catalogue nodes.

The driver fetches an offering's JSON-LD self-description, selects N
distinct nodes from the hash ring, posts the document to each node's
manager endpoint, and records the placement in the KV store. Placement
succeeds when at least one replica lands.

Redistribution replays a dead node's recorded offerings onto live
targets; offerings that cannot be moved stay recorded against the dead
node so a later cycle can retry them.

The poller sweeps the ledger on an interval and submits unseen offerings
to the worker pool.
*/
package placement
