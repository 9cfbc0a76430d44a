package apcluster

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ComputePreference derives the shared self-similarity from every stored
// similarity value. The median of an even-sized set is the mean of the two
// middle values.
func ComputePreference(values []float64, mode PreferenceMode) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySimilarity
	}
	switch mode {
	case PreferenceMedian:
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2], nil
		}
		return (sorted[n/2-1] + sorted[n/2]) / 2.0, nil
	case PreferenceMinimum:
		return floats.Min(values), nil
	case PreferenceSpread:
		return 2*floats.Min(values) - floats.Max(values), nil
	}
	return 0, &ConfigurationError{Field: "algorithm.preference_mode", Value: int(mode), Reason: "must be one of median, min, spread"}
}
