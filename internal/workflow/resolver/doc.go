// Package resolver contains the dependency resolver for phase step graphs. It
// validates a phase definition, rejects cycles, computes a stable topological
// order, and tracks which steps are ready as upstream steps complete.
package resolver
