// Package scheduler turns resolver snapshots into runnable step batches that
// respect dependency order and the phase's concurrency limit.
package scheduler
