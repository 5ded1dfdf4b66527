// Package op defines finitary operations over a flat-indexed universe.
//
// An Operation takes a fixed number of element indices and produces one
// element index. The closure engine only depends on this uniform
// contract; whether the result comes from a lookup table, an analytic
// function, or a coordinatewise product of factor operations is hidden
// behind the interface.
//
// Operation errors (wrong arity, out-of-range argument) indicate a
// malformed operation description, not a runtime condition. Callers
// must treat them as fatal.
package op

import (
	"errors"
	"fmt"
)

// Operation is one basic operation of an algebra.
//
// Apply must be pure: the same arguments always produce the same result.
// Implementations must be safe for concurrent use; the closure engine
// calls Apply from multiple workers at once.
type Operation interface {
	// Symbol is the operation's name, e.g. "+" or "meet".
	Symbol() string

	// Arity is the number of arguments. Zero is legal (constants).
	Arity() int

	// Apply evaluates the operation on the given element indices.
	Apply(args []int64) (int64, error)
}

// OpErrorCode categorizes operation application errors.
type OpErrorCode string

const (
	// CodeArityMismatch indicates the argument count does not match
	// the operation's declared arity.
	CodeArityMismatch OpErrorCode = "ARITY_MISMATCH"

	// CodeIndexOutOfRange indicates an argument index outside the
	// operation's universe.
	CodeIndexOutOfRange OpErrorCode = "INDEX_OUT_OF_RANGE"
)

// OpError reports a contract violation during operation application.
// Both codes are fatal: they mean the operation description or the
// caller is malformed, so the run must abort.
type OpError struct {
	Code   OpErrorCode
	Symbol string
	Got    int64 // offending argument count or index
	Limit  int64 // expected arity or exclusive index bound
}

func (e *OpError) Error() string {
	switch e.Code {
	case CodeArityMismatch:
		return fmt.Sprintf("%s: operation %q got %d args, want %d", e.Code, e.Symbol, e.Got, e.Limit)
	default:
		return fmt.Sprintf("%s: operation %q got index %d outside [0, %d)", e.Code, e.Symbol, e.Got, e.Limit)
	}
}

// IsArityMismatch returns true if the error is an arity mismatch.
// Uses errors.As to handle wrapped errors.
func IsArityMismatch(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == CodeArityMismatch
	}
	return false
}

// IsIndexOutOfRange returns true if the error is an out-of-range index.
// Uses errors.As to handle wrapped errors.
func IsIndexOutOfRange(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == CodeIndexOutOfRange
	}
	return false
}

// checkArgs validates argument count and ranges for an operation over a
// universe of the given size. Shared by the concrete implementations.
func checkArgs(symbol string, arity int, size int64, args []int64) error {
	if len(args) != arity {
		return &OpError{
			Code:   CodeArityMismatch,
			Symbol: symbol,
			Got:    int64(len(args)),
			Limit:  int64(arity),
		}
	}
	for _, a := range args {
		if a < 0 || a >= size {
			return &OpError{
				Code:   CodeIndexOutOfRange,
				Symbol: symbol,
				Got:    a,
				Limit:  size,
			}
		}
	}
	return nil
}
