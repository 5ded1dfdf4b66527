package algebra

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/coding"
	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/op"
)

// Algebra descriptions are written in CUE:
//
//	algebra: Z3: {
//		description: "cyclic group of order 3"
//		size: 3                         // single factor, or:
//		// factors: [2, 3]              // product universe
//		operation: "+": {
//			arity: 2
//			table: [0, 1, 2, 1, 2, 0, 2, 0, 1]
//		}
//	}
//
// Tables are flat, in Horner order: the entry for (a_0, ..., a_{n-1})
// lives at a_0 + size*(a_1 + size*(...)). Operations are compiled in
// declaration order; that order is the engine's application order.

// CompileAlgebra parses a CUE value (the algebra struct itself) into a
// validated Algebra. Uses the CUE SDK's Go API directly.
func CompileAlgebra(v cue.Value) (*Algebra, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	// Algebra name comes from the struct label.
	name := ""
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		name = labels[len(labels)-1].Unquoted()
	}
	if name == "" {
		return nil, &CompileError{Field: "name", Message: "algebra name is required", Pos: v.Pos()}
	}

	factors, err := parseFactors(v)
	if err != nil {
		return nil, err
	}
	size := factors.Size()

	operations, err := parseOperations(v, size)
	if err != nil {
		return nil, err
	}

	a, err := New(name, factors, operations)
	if err != nil {
		return nil, &CompileError{Field: "algebra", Message: err.Error(), Pos: v.Pos()}
	}

	descVal := v.LookupPath(cue.ParsePath("description"))
	if descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		a.description = desc
	}
	return a, nil
}

// parseFactors accepts either `size: n` or `factors: [s_0, ...]`.
func parseFactors(v cue.Value) (coding.Factors, error) {
	sizeVal := v.LookupPath(cue.ParsePath("size"))
	factorsVal := v.LookupPath(cue.ParsePath("factors"))

	switch {
	case sizeVal.Exists() && factorsVal.Exists():
		return nil, &CompileError{Field: "factors", Message: "size and factors are mutually exclusive", Pos: v.Pos()}

	case sizeVal.Exists():
		s, err := sizeVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if s <= 0 {
			return nil, &CompileError{Field: "size", Message: fmt.Sprintf("size must be positive, got %d", s), Pos: sizeVal.Pos()}
		}
		return coding.Factors{int(s)}, nil

	case factorsVal.Exists():
		iter, err := factorsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var factors coding.Factors
		for iter.Next() {
			s, err := iter.Value().Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if s <= 0 {
				return nil, &CompileError{Field: "factors", Message: fmt.Sprintf("factor sizes must be positive, got %d", s), Pos: iter.Value().Pos()}
			}
			factors = append(factors, int(s))
		}
		if len(factors) == 0 {
			return nil, &CompileError{Field: "factors", Message: "at least one factor is required", Pos: factorsVal.Pos()}
		}
		return factors, nil

	default:
		return nil, &CompileError{Field: "size", Message: "size or factors is required", Pos: v.Pos()}
	}
}

// parseOperations extracts the operation table definitions.
func parseOperations(v cue.Value, size int64) ([]op.Operation, error) {
	opsVal := v.LookupPath(cue.ParsePath("operation"))
	if !opsVal.Exists() {
		return nil, nil // operations are optional; the closure is then the generating set
	}

	iter, err := opsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var operations []op.Operation
	for iter.Next() {
		symbol := iter.Selector().Unquoted()
		opVal := iter.Value()

		arityVal := opVal.LookupPath(cue.ParsePath("arity"))
		if !arityVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("operation.%s.arity", symbol),
				Message: "arity is required",
				Pos:     opVal.Pos(),
			}
		}
		arity, err := arityVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}

		tableVal := opVal.LookupPath(cue.ParsePath("table"))
		if !tableVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("operation.%s.table", symbol),
				Message: "table is required",
				Pos:     opVal.Pos(),
			}
		}
		tblIter, err := tableVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var values []int64
		for tblIter.Next() {
			n, err := tblIter.Value().Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			values = append(values, n)
		}

		table, err := op.NewTable(symbol, int(arity), size, values)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("operation.%s", symbol),
				Message: err.Error(),
				Pos:     opVal.Pos(),
			}
		}
		operations = append(operations, table)
	}
	return operations, nil
}

// LoadFile compiles one CUE file holding exactly one algebra under the
// top-level `algebra` struct.
func LoadFile(path string) (*Algebra, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read algebra file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	algebras, err := compileAll(v)
	if err != nil {
		return nil, err
	}
	if len(algebras) != 1 {
		return nil, fmt.Errorf("%s: expected exactly one algebra, found %d", path, len(algebras))
	}
	return algebras[0], nil
}

// LoadDir compiles every .cue file in a directory (non-recursive) and
// returns the algebras sorted by name.
func LoadDir(dir string) ([]*Algebra, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read algebra directory: %w", err)
	}

	var all []*Algebra
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".cue" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		ctx := cuecontext.New()
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		algebras, err := compileAll(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, algebras...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].name < all[j].name })
	return all, nil
}

// compileAll compiles every algebra under the top-level `algebra`
// struct, in declaration order.
func compileAll(v cue.Value) ([]*Algebra, error) {
	root := v.LookupPath(cue.ParsePath("algebra"))
	if !root.Exists() {
		return nil, &CompileError{Field: "algebra", Message: "no top-level algebra struct found", Pos: v.Pos()}
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var algebras []*Algebra
	for iter.Next() {
		a, err := CompileAlgebra(iter.Value())
		if err != nil {
			return nil, err
		}
		algebras = append(algebras, a)
	}
	if len(algebras) == 0 {
		return nil, &CompileError{Field: "algebra", Message: "algebra struct is empty", Pos: root.Pos()}
	}
	return algebras, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
