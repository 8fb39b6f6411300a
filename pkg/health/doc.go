/*
Package health supervises catalogue node liveness.

Nodes are probed on an interval via their catalogue test endpoint. A
failed probe makes a node suspect without touching the ring; only after
probes keep failing for a full grace period is the node declared dead,
its offerings redistributed and its slots removed. A dead node that
starts answering again is re-admitted.
*/
package health
