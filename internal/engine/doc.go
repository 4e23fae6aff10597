// Package engine runs render batches. A Dispatcher probes the registered
// backends, assigns tasks round-robin over the live ones, and executes them on
// a bounded worker pool. Per-task failures are recorded in the batch summary
// and never abort the batch; regeneration re-runs a chosen subset of tasks.
package engine
