package ellipsoid

import (
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/ebm/pkg/reading"
)

// Shape describes the ellipse to fit. The semi-axes are supplied by the
// caller; Theta is used only when FixedTheta is set, otherwise it is
// estimated from the series.
type Shape struct {
	AxisA      float64
	AxisB      float64
	Theta      float64
	FixedTheta bool
}

// BoundaryPoint holds the upper and lower boundary of the ellipse at X.
type BoundaryPoint struct {
	X      float64 `json:"x"       yaml:"x"`
	YUpper float64 `json:"y_upper" yaml:"y_upper"`
	YLower float64 `json:"y_lower" yaml:"y_lower"`
}

// Parameters is a fitted ellipse: its axes, orientation, the readings it was
// computed over and the boundary points found at each reading's X.
type Parameters struct {
	AxisA          float64         `json:"a"                 yaml:"a"`
	AxisB          float64         `json:"b"                 yaml:"b"`
	Theta          float64         `json:"theta"             yaml:"theta"`
	ThetaEstimated bool            `json:"theta_estimated"   yaml:"theta_estimated"`
	Source         reading.Series  `json:"source,omitempty"  yaml:"source,omitempty"`
	Boundary       []BoundaryPoint `json:"boundary"          yaml:"boundary"`
	// Skipped counts source readings whose X lies outside the ellipse extent.
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Coefficients returns the conic terms of p at x.
func (p *Parameters) Coefficients(x float64) Coefficients {
	return NewCoefficients(p.AxisA, p.AxisB, p.Theta, x)
}

// Compute fits shape over series and collects the boundary points at every
// reading's X. Readings outside the ellipse's horizontal extent contribute no
// boundary point and are counted in Skipped.
func Compute(series reading.Series, shape Shape) (*Parameters, error) {
	if !validAxis(shape.AxisA) || !validAxis(shape.AxisB) {
		return nil, fmt.Errorf("%w: a=%g b=%g", ErrDegenerateEllipsoid, shape.AxisA, shape.AxisB)
	}

	if shape.FixedTheta && !finite(shape.Theta) {
		return nil, fmt.Errorf("%w: theta=%g", ErrDegenerateEllipsoid, shape.Theta)
	}

	err := series.CheckFinite()
	if err != nil {
		return nil, err
	}

	theta := shape.Theta

	if !shape.FixedTheta {
		estimated, err := EstimateOrientation(series)
		if err != nil {
			return nil, fmt.Errorf("estimate orientation: %w", err)
		}

		theta = estimated
	}

	params := &Parameters{
		AxisA:          shape.AxisA,
		AxisB:          shape.AxisB,
		Theta:          theta,
		ThetaEstimated: !shape.FixedTheta,
		Source:         series,
	}

	params.Boundary, params.Skipped = boundary(params, series)

	return params, nil
}

// validAxis rejects non-positive, NaN and infinite semi-axes.
func validAxis(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Recompute returns a copy of p whose boundary is evaluated over series.
// Aggregated parameters carry no boundary of their own until recomputed.
func (p *Parameters) Recompute(series reading.Series) *Parameters {
	out := &Parameters{
		AxisA:          p.AxisA,
		AxisB:          p.AxisB,
		Theta:          p.Theta,
		ThetaEstimated: p.ThetaEstimated,
		Source:         series,
	}

	out.Boundary, out.Skipped = boundary(out, series)

	return out
}

func boundary(p *Parameters, series reading.Series) ([]BoundaryPoint, int) {
	points := make([]BoundaryPoint, 0, len(series))
	skipped := 0

	for _, r := range series {
		upper, lower, ok := Roots(p.Coefficients(r.X))
		if !ok {
			skipped++

			continue
		}

		points = append(points, BoundaryPoint{X: r.X, YUpper: upper, YLower: lower})
	}

	return points, skipped
}
