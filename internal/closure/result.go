package closure

import "time"

// Reason is the terminal state of a closure run. All three reasons are
// normal terminations with a well-defined discovered set; contract
// violations in the supplied operations surface as errors instead.
type Reason string

const (
	// ReasonFixpoint: a pass discovered no new elements.
	ReasonFixpoint Reason = "fixpoint"

	// ReasonMemoryLimit: the discovered-set cardinality reached the
	// configured ceiling. The set may overshoot the ceiling by at most
	// one pass's discoveries.
	ReasonMemoryLimit Reason = "memory-limit"

	// ReasonCancelled: the run's context was cancelled. The set is the
	// state after the last completed merge.
	ReasonCancelled Reason = "cancelled"
)

// Result is the outcome of a closure run.
type Result struct {
	// Elements is the discovered set, sorted ascending. Identical for
	// identical inputs regardless of worker count.
	Elements []int64

	// Reason is the terminal state.
	Reason Reason

	// Passes is the number of completed (merged) passes.
	Passes int

	// Applications is the total number of operation applications.
	Applications uint64

	// Elapsed is the total wall-clock duration of the run.
	Elapsed time.Duration
}

// Contains reports membership in the discovered set by binary search.
func (r *Result) Contains(idx int64) bool {
	lo, hi := 0, len(r.Elements)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case r.Elements[mid] < idx:
			lo = mid + 1
		case r.Elements[mid] > idx:
			hi = mid
		default:
			return true
		}
	}
	return false
}
