package op

import (
	"fmt"
	"math"
)

// Table is an operation backed by a flat lookup table.
//
// The table holds size^arity values in Horner order: the entry for
// arguments (a_0, ..., a_{n-1}) lives at a_0 + size*(a_1 + size*(...)).
// This matches the coding package's mixed-radix layout, with every
// "factor" being the operation's own universe.
type Table struct {
	symbol string
	arity  int
	size   int64
	values []int64
}

// NewTable builds a table-backed operation.
//
// The constructor validates that the table has exactly size^arity
// entries and that every entry is a valid element index. A nullary
// operation has exactly one entry (its constant value).
func NewTable(symbol string, arity int, size int64, values []int64) (*Table, error) {
	if arity < 0 {
		return nil, fmt.Errorf("operation %q: negative arity %d", symbol, arity)
	}
	if size <= 0 {
		return nil, fmt.Errorf("operation %q: non-positive universe size %d", symbol, size)
	}
	want := int64(1)
	for i := 0; i < arity; i++ {
		if want > math.MaxInt64/size {
			return nil, fmt.Errorf("operation %q: table of size %d^%d exceeds int64", symbol, size, arity)
		}
		want *= size
	}
	if int64(len(values)) != want {
		return nil, fmt.Errorf("operation %q: table has %d entries, want %d", symbol, len(values), want)
	}
	for i, v := range values {
		if v < 0 || v >= size {
			return nil, fmt.Errorf("operation %q: table entry %d is %d, outside [0, %d)", symbol, i, v, size)
		}
	}
	return &Table{
		symbol: symbol,
		arity:  arity,
		size:   size,
		values: append([]int64(nil), values...),
	}, nil
}

// Symbol implements Operation.
func (t *Table) Symbol() string { return t.symbol }

// Arity implements Operation.
func (t *Table) Arity() int { return t.arity }

// Size returns the operation's universe cardinality.
func (t *Table) Size() int64 { return t.size }

// Apply implements Operation via a single table lookup.
func (t *Table) Apply(args []int64) (int64, error) {
	if err := checkArgs(t.symbol, t.arity, t.size, args); err != nil {
		return 0, err
	}
	pos := int64(0)
	for i := len(args) - 1; i >= 0; i-- {
		pos = pos*t.size + args[i]
	}
	return t.values[pos], nil
}

// Func is an operation computed by a caller-supplied pure function.
// Arguments are range-checked before the function is called, and the
// result is range-checked after, so a buggy function cannot leak
// out-of-universe indices into the discovered set.
type Func struct {
	symbol string
	arity  int
	size   int64
	fn     func(args []int64) int64
}

// NewFunc wraps a pure function as an operation on a universe of the
// given size.
func NewFunc(symbol string, arity int, size int64, fn func(args []int64) int64) (*Func, error) {
	if arity < 0 {
		return nil, fmt.Errorf("operation %q: negative arity %d", symbol, arity)
	}
	if size <= 0 {
		return nil, fmt.Errorf("operation %q: non-positive universe size %d", symbol, size)
	}
	if fn == nil {
		return nil, fmt.Errorf("operation %q: nil function", symbol)
	}
	return &Func{symbol: symbol, arity: arity, size: size, fn: fn}, nil
}

// Symbol implements Operation.
func (f *Func) Symbol() string { return f.symbol }

// Arity implements Operation.
func (f *Func) Arity() int { return f.arity }

// Size returns the operation's universe cardinality.
func (f *Func) Size() int64 { return f.size }

// Apply implements Operation.
func (f *Func) Apply(args []int64) (int64, error) {
	if err := checkArgs(f.symbol, f.arity, f.size, args); err != nil {
		return 0, err
	}
	out := f.fn(args)
	if out < 0 || out >= f.size {
		return 0, &OpError{
			Code:   CodeIndexOutOfRange,
			Symbol: f.symbol,
			Got:    out,
			Limit:  f.size,
		}
	}
	return out, nil
}
