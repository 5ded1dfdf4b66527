// Package closure computes the closure of a generating set under a
// fixed list of finitary operations on a flat-indexed universe.
//
// The universe is never materialized: elements are int64 indices
// produced by the coding package, and operations act on indices through
// the op.Operation contract.
//
// ARCHITECTURE:
//
// Pass-Based Saturation:
// The engine runs breadth-first passes. Each pass applies every
// operation to every argument tuple that contains at least one element
// discovered in the previous pass (tuples drawn entirely from older
// elements were already tried). Newly produced indices are staged in
// per-worker buffers and folded into the discovered set in a single
// merge step at the end of the pass. A pass that merges nothing ends
// the run at a fixpoint.
//
// Single-Writer Merge:
// The discovered set is the only cross-pass shared state. Workers read
// a frozen snapshot of it and never write; all insertion happens in the
// engine goroutine between passes. Per-pass set contents are a union
// over all eligible tuples, so they do not depend on how the work was
// partitioned or scheduled.
//
// Termination:
// A run ends in exactly one of three states: Fixpoint (no new elements),
// MemoryLimit (discovered-set cardinality reached the configured
// ceiling, checked once per pass after the merge), or Cancelled
// (context cancelled, checked at pass boundaries and at sub-pass
// checkpoints inside workers). An operation error is none of these: it
// aborts the run without merging staged discoveries and surfaces to the
// caller as an error.
package closure
