// Package algebra describes finite product algebras: factor sizes plus
// an ordered list of basic operations. It is the input boundary of the
// closure engine: descriptions arrive from CUE files (compile.go) or
// are built programmatically, get validated once, and are then handed
// to closure.Engine as a flat universe size and operation list.
package algebra

import (
	"context"
	"fmt"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/closure"
	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/coding"
	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/op"
)

// Algebra is a validated algebra description. Immutable after
// construction.
type Algebra struct {
	name        string
	description string
	coder       *coding.Coder
	operations  []op.Operation
}

// sized is implemented by operations that know their universe
// cardinality (op.Table, op.Func, op.Product).
type sized interface {
	Size() int64
}

// New validates and builds an algebra. The operation list order is
// preserved; it determines the engine's per-pass application order.
//
// Validation covers the ConfigurationError taxonomy: factor sizes must
// be positive with an int64-sized product, and every operation that
// reports a universe size must match the product cardinality.
func New(name string, factors coding.Factors, operations []op.Operation) (*Algebra, error) {
	if name == "" {
		return nil, fmt.Errorf("algebra name is required")
	}
	coder, err := coding.NewCoder(factors)
	if err != nil {
		return nil, fmt.Errorf("algebra %q: %w", name, err)
	}
	for i, o := range operations {
		if o.Arity() < 0 {
			return nil, fmt.Errorf("algebra %q: operation %d (%q) has negative arity", name, i, o.Symbol())
		}
		if s, ok := o.(sized); ok && s.Size() != coder.Size() {
			return nil, fmt.Errorf("algebra %q: operation %q acts on %d elements, universe has %d",
				name, o.Symbol(), s.Size(), coder.Size())
		}
	}
	return &Algebra{
		name:       name,
		coder:      coder,
		operations: append([]op.Operation(nil), operations...),
	}, nil
}

// Name returns the algebra's name.
func (a *Algebra) Name() string { return a.name }

// Description returns the optional free-text description.
func (a *Algebra) Description() string { return a.description }

// Coder returns the universe codec.
func (a *Algebra) Coder() *coding.Coder { return a.coder }

// Size returns the universe cardinality.
func (a *Algebra) Size() int64 { return a.coder.Size() }

// Operations returns the operation list in declaration order.
func (a *Algebra) Operations() []op.Operation {
	return append([]op.Operation(nil), a.operations...)
}

// Generate computes the subuniverse generated by the given coordinate
// tuples. Generators are encoded through the algebra's coder; engine
// options (worker count, memory ceiling, progress sink) pass through.
func (a *Algebra) Generate(ctx context.Context, generators [][]int, opts ...closure.Option) (*closure.Result, error) {
	seed := make([]int64, len(generators))
	for i, g := range generators {
		idx, err := a.coder.Encode(g)
		if err != nil {
			return nil, fmt.Errorf("generator %d: %w", i, err)
		}
		seed[i] = idx
	}
	eng, err := closure.New(a.coder.Size(), a.operations, seed, opts...)
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx)
}

// Product builds the direct product of the given single-factor
// algebras: the product's factor list is their sizes, and each
// operation is the coordinatewise combination of the factors'
// same-position operations. All factor algebras must have the same
// similarity type: matching symbols and arities, position by position.
func Product(name string, algebras ...*Algebra) (*Algebra, error) {
	if len(algebras) == 0 {
		return nil, fmt.Errorf("product %q: at least one factor algebra is required", name)
	}
	first := algebras[0]
	var factors coding.Factors
	for _, a := range algebras {
		if a.coder.Rank() != 1 {
			return nil, fmt.Errorf("product %q: factor %q is itself a product; flatten it first", name, a.name)
		}
		if len(a.operations) != len(first.operations) {
			return nil, fmt.Errorf("product %q: algebra %q has %d operations, %q has %d",
				name, a.name, len(a.operations), first.name, len(first.operations))
		}
		factors = append(factors, a.coder.Factors()...)
	}
	coder, err := coding.NewCoder(factors)
	if err != nil {
		return nil, fmt.Errorf("product %q: %w", name, err)
	}

	var operations []op.Operation
	for i, o := range first.operations {
		parts := make([]op.Operation, len(algebras))
		for j, a := range algebras {
			fo := a.operations[i]
			if fo.Symbol() != o.Symbol() || fo.Arity() != o.Arity() {
				return nil, fmt.Errorf("product %q: operation %d is %q/%d in %q but %q/%d in %q",
					name, i, o.Symbol(), o.Arity(), first.name, fo.Symbol(), fo.Arity(), a.name)
			}
			parts[j] = fo
		}
		po, err := op.NewProduct(o.Symbol(), coder, parts)
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", name, err)
		}
		operations = append(operations, po)
	}
	return New(name, factors, operations)
}
