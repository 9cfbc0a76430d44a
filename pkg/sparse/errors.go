package sparse

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated indicates the input ended before a section was complete.
	ErrTruncated = errors.New("sparse: unexpected end of input")
	// ErrNegativeSize indicates a negative dimension or entry count in a header.
	ErrNegativeSize = errors.New("sparse: sizes must be non-negative")
	// ErrIndexRange indicates a minor index outside the matrix.
	ErrIndexRange = errors.New("sparse: index out of range")
	// ErrPointerOrder indicates offsets that do not start at zero, decrease, or
	// do not end at the entry count.
	ErrPointerOrder = errors.New("sparse: pointer offsets must be non-decreasing from 0 to nnz")
	// ErrNonFinite indicates a NaN or infinite stored value.
	ErrNonFinite = errors.New("sparse: value is not finite")
	// ErrLength indicates parallel arrays of mismatched length.
	ErrLength = errors.New("sparse: values and indices must have nnz entries")
	// ErrTooLarge indicates a dimension beyond what the reader will allocate.
	ErrTooLarge = errors.New("sparse: dimension too large")
)

// InputFormatError reports a malformed or truncated compressed matrix. Index is
// the position inside Section, or -1 when the error concerns the whole section.
type InputFormatError struct {
	Section string
	Index   int
	Err     error
}

func (e *InputFormatError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid input in %s at %d: %v", e.Section, e.Index, e.Err)
	}
	return fmt.Sprintf("invalid input in %s: %v", e.Section, e.Err)
}

func (e *InputFormatError) Unwrap() error { return e.Err }

// NumericalInstabilityError reports a NaN or infinite value produced by a
// computation. Index is the item or document concerned, -1 if none.
type NumericalInstabilityError struct {
	Phase     string
	Iteration int
	Index     int
	Value     float64
}

func (e *NumericalInstabilityError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("non-finite value %v in %s (iteration %d, index %d)", e.Value, e.Phase, e.Iteration, e.Index)
	}
	return fmt.Sprintf("non-finite value %v in %s (iteration %d)", e.Value, e.Phase, e.Iteration)
}
