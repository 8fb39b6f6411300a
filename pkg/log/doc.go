// Package log wraps zerolog with a process-wide logger and child-logger
// helpers for the fields the coordinator tags everywhere: component, node
// owner, offering id, and worker task id.
//
// Init must be called once at startup. Background loops log and continue;
// they never surface errors through the logger.
package log
