// Package api exposes the coordinator over HTTP: health, offering
// placement lookups, the synchronous processing trigger, federated
// SPARQL, and Prometheus metrics.
package api
