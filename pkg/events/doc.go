// Package events provides an in-process pub/sub broker for node lifecycle
// and placement events. The health supervisor and placement driver publish;
// the metrics collector subscribes. Delivery is best-effort: a subscriber
// with a full buffer misses the event.
package events
