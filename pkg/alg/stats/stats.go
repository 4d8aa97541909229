// Package stats provides the descriptive statistics used by the pipeline.
// All standard deviation calculations use population stddev (÷n, not ÷(n−1)).
package stats

import (
	"errors"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned when a statistic is requested over no values.
var ErrEmptyInput = errors.New("empty input")

// Mean returns the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}

	return stat.Mean(values, nil), nil
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) (float64, error) {
	_, sd, err := MeanStdDev(values)

	return sd, err
}

// MeanStdDev returns the arithmetic mean and population standard deviation.
// A constant sequence has a standard deviation of exactly zero.
func MeanStdDev(values []float64) (mean, stddev float64, err error) {
	if len(values) == 0 {
		return 0, 0, ErrEmptyInput
	}

	// Summation round-off would otherwise leave a residue of ~1e-17.
	if isConstant(values) {
		return values[0], 0, nil
	}

	mean, stddev = stat.PopMeanStdDev(values, nil)

	return mean, stddev, nil
}

// MinMax returns the smallest and largest element of values.
func MinMax(values []float64) (lo, hi float64, err error) {
	if len(values) == 0 {
		return 0, 0, ErrEmptyInput
	}

	return floats.Min(values), floats.Max(values), nil
}

// PercentileMedian is the percentile that selects the median.
const PercentileMedian = 0.5

// Percentile returns the p-th percentile of values using linear interpolation.
// p must be in [0, 1]. The input slice is not modified (a copy is sorted internally).
// Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	count := len(values)
	if count == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	idx := p * float64(count-1)
	lower := int(idx)
	upper := min(lower+1, count-1)
	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Median returns the 50th percentile of values.
// Returns 0 for an empty slice.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}

func isConstant(values []float64) bool {
	first := values[0]

	for _, v := range values[1:] {
		if v != first {
			return false
		}
	}

	return true
}
