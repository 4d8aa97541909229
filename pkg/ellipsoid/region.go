package ellipsoid

import (
	"fmt"

	"github.com/Sumatoshi-tech/ebm/pkg/alg/stats"
)

// AggregateRegion averages the axes and orientation of the ellipses of one
// region. Boundary points are not averaged; call Recompute on the result.
func AggregateRegion(list []*Parameters) (*Parameters, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("aggregate region: %w", stats.ErrEmptyInput)
	}

	axesA := make([]float64, len(list))
	axesB := make([]float64, len(list))
	thetas := make([]float64, len(list))

	for i, p := range list {
		if p == nil || !validAxis(p.AxisA) || !validAxis(p.AxisB) {
			return nil, fmt.Errorf("aggregate region: entry %d: %w", i, ErrDegenerateEllipsoid)
		}

		if !finite(p.Theta) {
			return nil, fmt.Errorf("aggregate region: entry %d: %w: theta=%g", i, ErrDegenerateEllipsoid, p.Theta)
		}

		axesA[i], axesB[i], thetas[i] = p.AxisA, p.AxisB, p.Theta
	}

	// Lengths were checked above, so the means cannot fail.
	meanA, _ := stats.Mean(axesA)
	meanB, _ := stats.Mean(axesB)
	meanTheta, _ := stats.Mean(thetas)

	return &Parameters{AxisA: meanA, AxisB: meanB, Theta: meanTheta}, nil
}
