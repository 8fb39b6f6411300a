/*
Package ring implements the consistent-hash ring that places offerings on
catalogue nodes.

Each node contributes a fixed number of virtual slots (default 150), keyed
"{owner}-{i}" and positioned by the first 16 bytes of the MD5 digest read
as a big-endian 128-bit integer. Lookup is a binary search over the sorted
slot index; GetN walks clockwise accumulating distinct owners, wrapping
once.

Ring mutations are pure in-memory under a single writer lock. After every
mutation a snapshot ({ring, sorted_keys}) is written to the KV store as a
best-effort rebuild hint; failures are logged, never surfaced.
*/
package ring
