// Package engine tracks a pipeline run: the phase-state vector, per-step
// records and timestamps. Every transition is persisted through a
// StateStore so `phasegen status` can report on a run in progress or one
// that already finished.
package engine
