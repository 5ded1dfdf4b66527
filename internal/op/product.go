package op

import (
	"fmt"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/coding"
)

// Product is a coordinatewise operation on a product universe.
//
// Given one same-arity operation per factor, the product operation
// decodes each argument into its coordinate tuple, applies factor i's
// operation to the i-th coordinates, and re-encodes the results. This
// is how operations of factor algebras induce operations on the product
// without the product's elements ever being materialized.
type Product struct {
	symbol  string
	arity   int
	coder   *coding.Coder
	factors []Operation // one per factor, in factor order
}

// NewProduct builds a coordinatewise operation from per-factor
// operations. All factor operations must share the same arity, and
// there must be exactly one per factor of the coder.
func NewProduct(symbol string, coder *coding.Coder, factors []Operation) (*Product, error) {
	if coder == nil {
		return nil, fmt.Errorf("operation %q: nil coder", symbol)
	}
	if len(factors) != coder.Rank() {
		return nil, fmt.Errorf("operation %q: %d factor operations for %d factors", symbol, len(factors), coder.Rank())
	}
	arity := factors[0].Arity()
	for i, f := range factors {
		if f.Arity() != arity {
			return nil, fmt.Errorf("operation %q: factor %d has arity %d, want %d", symbol, i, f.Arity(), arity)
		}
	}
	return &Product{
		symbol:  symbol,
		arity:   arity,
		coder:   coder,
		factors: append([]Operation(nil), factors...),
	}, nil
}

// Symbol implements Operation.
func (p *Product) Symbol() string { return p.symbol }

// Arity implements Operation.
func (p *Product) Arity() int { return p.arity }

// Size returns the product universe cardinality.
func (p *Product) Size() int64 { return p.coder.Size() }

// Apply implements Operation by working one coordinate at a time.
func (p *Product) Apply(args []int64) (int64, error) {
	if err := checkArgs(p.symbol, p.arity, p.coder.Size(), args); err != nil {
		return 0, err
	}

	// Decode every argument up front; factor i then sees the i-th
	// coordinate of each argument.
	coords := make([][]int, len(args))
	for i, a := range args {
		c, err := p.coder.Decode(a)
		if err != nil {
			return 0, fmt.Errorf("decode argument %d of %q: %w", i, p.symbol, err)
		}
		coords[i] = c
	}

	out := make([]int, p.coder.Rank())
	factorArgs := make([]int64, len(args))
	for i, f := range p.factors {
		for j := range args {
			factorArgs[j] = int64(coords[j][i])
		}
		r, err := f.Apply(factorArgs)
		if err != nil {
			return 0, fmt.Errorf("factor %d of %q: %w", i, p.symbol, err)
		}
		out[i] = int(r)
	}

	idx, err := p.coder.Encode(out)
	if err != nil {
		return 0, fmt.Errorf("encode result of %q: %w", p.symbol, err)
	}
	return idx, nil
}
