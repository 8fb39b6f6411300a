// Package metrics exposes Prometheus collectors for the coordinator:
// node and ring gauges, placement and federation counters, and API request
// histograms. The Collector keeps the cluster gauges fresh from the health
// supervisor and the event broker; Handler serves /metrics.
package metrics
