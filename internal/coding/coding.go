// Package coding implements the reversible mapping between coordinate
// tuples of a finite product universe and flat element indices.
//
// Elements of a product of factors with sizes (s_0, ..., s_{k-1}) are
// addressed by a single int64 in [0, s_0*...*s_{k-1}) using mixed-radix
// (Horner) positional encoding:
//
//	index = c_0 + s_0*(c_1 + s_1*(c_2 + ...))
//
// Encode and Decode are pure inverse functions over their valid domains.
// The product of sizes must fit in int64; this is checked once at
// construction so that no arithmetic inside a run can wrap.
package coding

import (
	"errors"
	"fmt"
	"math"
)

// Factors is the ordered list of factor cardinalities.
// Immutable for the lifetime of one closure run.
type Factors []int

// Validate checks that every size is positive and that the product of
// all sizes fits in int64. Returns a UniverseTooLargeError on overflow.
func (f Factors) Validate() error {
	if len(f) == 0 {
		return errors.New("at least one factor is required")
	}
	prod := int64(1)
	for i, s := range f {
		if s <= 0 {
			return fmt.Errorf("factor %d has non-positive size %d", i, s)
		}
		if prod > math.MaxInt64/int64(s) {
			return &UniverseTooLargeError{Factors: append(Factors(nil), f...)}
		}
		prod *= int64(s)
	}
	return nil
}

// Size returns the cardinality of the product universe.
// Only meaningful after Validate has succeeded.
func (f Factors) Size() int64 {
	prod := int64(1)
	for _, s := range f {
		prod *= int64(s)
	}
	return prod
}

// Coder converts between coordinate tuples and flat indices for a fixed
// set of factors.
//
// Thread-safety: Coder is immutable after construction and safe for
// concurrent use.
type Coder struct {
	factors Factors
	size    int64
}

// NewCoder validates the factors and builds a Coder.
func NewCoder(factors Factors) (*Coder, error) {
	if err := factors.Validate(); err != nil {
		return nil, err
	}
	return &Coder{
		factors: append(Factors(nil), factors...),
		size:    factors.Size(),
	}, nil
}

// Factors returns a copy of the factor sizes.
func (c *Coder) Factors() Factors {
	return append(Factors(nil), c.factors...)
}

// Size returns the cardinality of the product universe.
func (c *Coder) Size() int64 {
	return c.size
}

// Rank returns the number of factors.
func (c *Coder) Rank() int {
	return len(c.factors)
}

// Encode maps a coordinate tuple to its flat index.
// Fails with a CodeError if the tuple length does not match the number
// of factors or any coordinate is out of range for its factor.
func (c *Coder) Encode(coords []int) (int64, error) {
	if len(coords) != len(c.factors) {
		return 0, &CodeError{
			Code:  CodeBadTupleLength,
			Got:   int64(len(coords)),
			Limit: int64(len(c.factors)),
		}
	}
	idx := int64(0)
	for i := len(coords) - 1; i >= 0; i-- {
		ci := coords[i]
		if ci < 0 || ci >= c.factors[i] {
			return 0, &CodeError{
				Code:     CodeCoordOutOfRange,
				Position: i,
				Got:      int64(ci),
				Limit:    int64(c.factors[i]),
			}
		}
		idx = idx*int64(c.factors[i]) + int64(ci)
	}
	return idx, nil
}

// Decode maps a flat index back to its coordinate tuple.
// Fails with a CodeError if the index is outside [0, Size()).
func (c *Coder) Decode(index int64) ([]int, error) {
	if index < 0 || index >= c.size {
		return nil, &CodeError{
			Code:  CodeIndexOutOfRange,
			Got:   index,
			Limit: c.size,
		}
	}
	coords := make([]int, len(c.factors))
	for i, s := range c.factors {
		coords[i] = int(index % int64(s))
		index /= int64(s)
	}
	return coords, nil
}

// UniverseTooLargeError reports a factor list whose product does not fit
// in int64. Detected at construction, before any run starts.
type UniverseTooLargeError struct {
	Factors Factors
}

func (e *UniverseTooLargeError) Error() string {
	return fmt.Sprintf("product of %d factor sizes exceeds int64 index space", len(e.Factors))
}

// IsUniverseTooLarge returns true if the error is a UniverseTooLargeError.
// Uses errors.As to handle wrapped errors.
func IsUniverseTooLarge(err error) bool {
	var ue *UniverseTooLargeError
	return errors.As(err, &ue)
}

// CodeErrorCode categorizes codec errors.
type CodeErrorCode string

const (
	// CodeBadTupleLength indicates a tuple whose length does not match
	// the number of factors.
	CodeBadTupleLength CodeErrorCode = "BAD_TUPLE_LENGTH"

	// CodeCoordOutOfRange indicates a coordinate outside its factor.
	CodeCoordOutOfRange CodeErrorCode = "COORD_OUT_OF_RANGE"

	// CodeIndexOutOfRange indicates a flat index outside the universe.
	CodeIndexOutOfRange CodeErrorCode = "INDEX_OUT_OF_RANGE"
)

// CodeError reports an invalid tuple or index passed to a Coder.
type CodeError struct {
	Code     CodeErrorCode
	Position int   // coordinate position (for COORD_OUT_OF_RANGE)
	Got      int64 // offending value or length
	Limit    int64 // exclusive bound or expected length
}

func (e *CodeError) Error() string {
	switch e.Code {
	case CodeBadTupleLength:
		return fmt.Sprintf("%s: got tuple of length %d, want %d", e.Code, e.Got, e.Limit)
	case CodeCoordOutOfRange:
		return fmt.Sprintf("%s: coordinate %d is %d, factor size %d", e.Code, e.Position, e.Got, e.Limit)
	default:
		return fmt.Sprintf("%s: index %d outside [0, %d)", e.Code, e.Got, e.Limit)
	}
}
