package apcluster

import (
	"errors"
	"fmt"

	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

var (
	// ErrEmptySimilarity is returned when a preference has to be derived from
	// a similarity matrix without any entries.
	ErrEmptySimilarity = errors.New("apcluster: no similarity entries to derive preference from")
	// ErrNoItems is returned for a similarity matrix with zero items.
	ErrNoItems = errors.New("apcluster: similarity matrix has no items")
	// ErrNotSquare is returned when the similarity matrix is not n x n.
	ErrNotSquare = errors.New("apcluster: similarity matrix must be square")
	// ErrPreferenceCount is returned when explicit preferences do not cover every item.
	ErrPreferenceCount = errors.New("apcluster: explicit preferences must have one value per item")
)

// InputFormatError reports a malformed or inconsistent similarity input.
type InputFormatError = sparse.InputFormatError

// NumericalInstabilityError reports a NaN or infinite value produced while
// building the graph or passing messages.
type NumericalInstabilityError = sparse.NumericalInstabilityError

// ConfigurationError reports a tunable outside its allowed range.
type ConfigurationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("apcluster: invalid configuration %s=%v: %s", e.Field, e.Value, e.Reason)
}
