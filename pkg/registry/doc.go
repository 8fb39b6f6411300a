/*
Package registry discovers catalogue nodes and keeps the canonical node
records in the KV store.

Discovery walks the ledger's offerings index, derives each node's address
from the offering's descriptionUri and de-duplicates by owner; a second
offering from the same owner is ignored for node purposes. A baseline mode
reads a static node file instead of the ledger.

The registry creates node records; the health supervisor mutates their
status; removal happens only after grace-period expiry.
*/
package registry
