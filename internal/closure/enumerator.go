package closure

import (
	"errors"
	"fmt"
)

// Enumerator produces, in a fixed deterministic order, every arity-a
// argument tuple over a snapshot of discovered elements such that at
// least one coordinate is drawn from the "new" suffix of the snapshot.
//
// The snapshot slice holds the old elements first (positions [0, old))
// and the new ones after them (positions [old, len)). Tuples are grouped
// into blocks by the first position that holds a new element: inside
// block j, positions before j range over old elements only, position j
// ranges over new elements only, and positions after j range over the
// whole snapshot. Block j therefore contributes old^j * new *
// total^(a-1-j) tuples, and the blocks together cover exactly
// total^a - old^a tuples, each once.
//
// State is O(arity): a digit odometer plus the current block. The last
// position varies fastest. Seek allows workers to start at any rank, so
// a pass can be split into contiguous disjoint slices.
//
// Not safe for concurrent use; each worker owns its own Enumerator.
type Enumerator struct {
	elems []int64
	old   int
	arity int

	block  int
	digits []int
	tuple  []int64
	done   bool
}

// TooManyTuplesError reports a pass whose tuple count does not fit in
// int64. Treated as a configuration error: such a pass could never be
// executed anyway.
type TooManyTuplesError struct {
	Arity int
	Size  int64
}

func (e *TooManyTuplesError) Error() string {
	return fmt.Sprintf("tuple count %d^%d exceeds int64", e.Size, e.Arity)
}

// IsTooManyTuples returns true if the error is a TooManyTuplesError.
// Uses errors.As to handle wrapped errors.
func IsTooManyTuples(err error) bool {
	var te *TooManyTuplesError
	return errors.As(err, &te)
}

// NewEnumerator creates an enumerator over the snapshot. The first old
// positions of elems are the previously tried elements. Arity 0 yields
// no tuples: a constant's only application happens at seed time.
func NewEnumerator(elems []int64, old, arity int) (*Enumerator, error) {
	if old < 0 || old > len(elems) {
		return nil, fmt.Errorf("old prefix %d outside snapshot of %d elements", old, len(elems))
	}
	if arity < 0 {
		return nil, fmt.Errorf("negative arity %d", arity)
	}
	e := &Enumerator{
		elems:  elems,
		old:    old,
		arity:  arity,
		digits: make([]int, arity),
		tuple:  make([]int64, arity),
	}
	e.reset()
	return e, nil
}

// Count returns the number of tuples the enumerator will yield,
// total^arity - old^arity, with overflow detected.
func (e *Enumerator) Count() (int64, error) {
	return TupleCount(len(e.elems), e.old, e.arity)
}

// TupleCount computes total^arity - old^arity with overflow checking.
// Exposed so the engine can size passes without building an enumerator.
func TupleCount(total, old, arity int) (int64, error) {
	if arity == 0 {
		return 0, nil
	}
	all, ok := pow64(int64(total), arity)
	if !ok {
		return 0, &TooManyTuplesError{Arity: arity, Size: int64(total)}
	}
	prev, ok := pow64(int64(old), arity)
	if !ok {
		return 0, &TooManyTuplesError{Arity: arity, Size: int64(old)}
	}
	return all - prev, nil
}

// reset positions the enumerator at rank 0.
func (e *Enumerator) reset() {
	e.done = e.arity == 0 || len(e.elems) == e.old
	e.block = 0
	for i := range e.digits {
		e.digits[i] = 0
	}
	if !e.done {
		e.digits[0] = e.old // block 0: position 0 holds a new element
	}
}

// blockCount returns the tuple count of block j: old^j * new * total^(a-1-j).
// Counts were overflow-checked by Count before enumeration starts.
func (e *Enumerator) blockCount(j int) int64 {
	old := int64(e.old)
	total := int64(len(e.elems))
	n := total - old
	c := n
	for i := 0; i < j; i++ {
		c *= old
	}
	for i := j + 1; i < e.arity; i++ {
		c *= total
	}
	return c
}

// bounds returns the half-open digit range for position i inside the
// current block.
func (e *Enumerator) bounds(i int) (lo, hi int) {
	switch {
	case i < e.block:
		return 0, e.old
	case i == e.block:
		return e.old, len(e.elems)
	default:
		return 0, len(e.elems)
	}
}

// Next returns the next tuple and true, or nil and false once the
// sequence is exhausted. The returned slice is reused between calls;
// callers must not retain it.
func (e *Enumerator) Next() ([]int64, bool) {
	if e.done {
		return nil, false
	}
	for i, d := range e.digits {
		e.tuple[i] = e.elems[d]
	}
	e.advance()
	return e.tuple, true
}

// advance increments the odometer, moving to the next block when the
// current one rolls over.
func (e *Enumerator) advance() {
	for i := e.arity - 1; i >= 0; i-- {
		lo, hi := e.bounds(i)
		e.digits[i]++
		if e.digits[i] < hi {
			return
		}
		e.digits[i] = lo
	}

	// Block exhausted; find the next non-empty one.
	for j := e.block + 1; j < e.arity; j++ {
		if e.blockCount(j) > 0 {
			e.block = j
			for i := range e.digits {
				lo, _ := e.bounds(i)
				e.digits[i] = lo
			}
			return
		}
	}
	e.done = true
}

// Seek positions the enumerator at the given rank in its sequence.
// Rank 0 is the first tuple. Seeking to Count() leaves the enumerator
// exhausted.
func (e *Enumerator) Seek(rank int64) error {
	total, err := e.Count()
	if err != nil {
		return err
	}
	if rank < 0 || rank > total {
		return fmt.Errorf("rank %d outside [0, %d]", rank, total)
	}
	if rank == total {
		e.done = true
		return nil
	}
	e.done = false

	// Find the block containing rank.
	j := 0
	for {
		c := e.blockCount(j)
		if rank < c {
			break
		}
		rank -= c
		j++
	}
	e.block = j

	// Decompose the remainder; position arity-1 varies fastest.
	for i := e.arity - 1; i >= 0; i-- {
		lo, hi := e.bounds(i)
		radix := int64(hi - lo)
		e.digits[i] = lo + int(rank%radix)
		rank /= radix
	}
	return nil
}

// pow64 computes base^exp in int64, reporting overflow.
func pow64(base int64, exp int) (int64, bool) {
	const maxInt64 = int64(^uint64(0) >> 1)
	result := int64(1)
	for i := 0; i < exp; i++ {
		if base != 0 && result > maxInt64/base {
			return 0, false
		}
		result *= base
	}
	return result, true
}
