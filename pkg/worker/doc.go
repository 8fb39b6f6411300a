/*
Package worker provides the bounded pool that drives placement and
redistribution as background activity.

At most W tasks run concurrently; the submission queue exerts back-pressure
once full. Each submission gets a stable uuid task id with a queryable
status (pending, completed, failed, cancelled). A started task cannot be
cancelled, and Result's timeout never cancels the underlying work. Panics
inside a task are captured and surfaced as task failure, so one bad unit of
work never takes down a worker.

Domain adapters wrap the placement driver so callers need not know how
work is dispatched.
*/
package worker
