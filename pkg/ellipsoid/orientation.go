// Package ellipsoid models the normal operating envelope of paired sensor
// readings as a rotated ellipse, aggregates per-sensor ellipses into a
// regional consensus, and classifies readings that fall outside it.
package ellipsoid

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/Sumatoshi-tech/ebm/pkg/reading"
)

// Sentinel errors.
var (
	// ErrDegenerateOrientation is returned when the tilt of a series cannot
	// be estimated: every X is identical, a sum is not finite or there are
	// fewer than two readings.
	ErrDegenerateOrientation = errors.New("degenerate orientation")
	// ErrDegenerateEllipsoid is returned for a non-positive semi-axis.
	ErrDegenerateEllipsoid = errors.New("degenerate ellipsoid")
)

// EstimateOrientation returns the least-squares tilt of series in radians:
//
//	S1 = nΣxy − ΣxΣy
//	S2 = nΣx² − (Σx)²
//	theta = atan(S1 / S2)
//
// The signed atan value in (−π/2, π/2) is returned as is.
func EstimateOrientation(series reading.Series) (float64, error) {
	if len(series) < 2 {
		return 0, ErrDegenerateOrientation
	}

	xs, ys := series.Xs(), series.Ys()
	n := float64(len(series))
	sumX, sumY := floats.Sum(xs), floats.Sum(ys)

	s1 := n*floats.Dot(xs, ys) - sumX*sumY
	s2 := n*floats.Dot(xs, xs) - sumX*sumX

	if s2 == 0 || allEqual(xs) || !finite(s1) || !finite(s2) {
		return 0, ErrDegenerateOrientation
	}

	return math.Atan(s1 / s2), nil
}

// allEqual guards against S2 collapsing to a round-off residue instead of 0.
func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}

	return true
}
