/*
Package kv provides the shared key/value store used for placement
bookkeeping.

The primary backend is a remote Redis shared across coordinator processes.
When the backend is unreachable, at dial time or later, the store degrades
to an in-process Memory implementation with the same surface:
get/set/delete/exists, hashes for node records, sets for the node and
offering indexes, and glob-matching Scan. The fallback's Ping always
succeeds. A degraded store stays on the fallback; recovery happens on the
next fresh Connect.

Operations that conceptually form a set-of-updates (add a node record and
its index entry, record a placement in three keys) are individually
idempotent and reconstructible from live state, so non-atomicity between
them is tolerated.
*/
package kv
