package ellipsoid_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ebm/pkg/alg/stats"
	"github.com/Sumatoshi-tech/ebm/pkg/ellipsoid"
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
)

// Reference ellipse used throughout the IBRL worked example.
const (
	refA     = 1.7601
	refB     = 4.1168
	refTheta = 0.717564
	refX     = 3.0
)

const tolerance5 = 1e-5

var refSeries = reading.Series{{X: 1, Y: 5}, {X: 3, Y: 5}, {X: 2, Y: 4}, {X: 6, Y: 3}}

func TestNewCoefficients_Reference(t *testing.T) {
	t.Parallel()

	c := ellipsoid.NewCoefficients(refA, refB, refTheta, refX)

	assert.InDelta(t, 0.17306, c.A, tolerance5)
	assert.InDelta(t, 0.784098, c.B, tolerance5)
	assert.InDelta(t, 0.878646, c.C, tolerance5)
}

func TestNewCoefficients_AIndependentOfX(t *testing.T) {
	t.Parallel()

	for _, x := range []float64{-4, 0, 0.5, 3, 100} {
		c := ellipsoid.NewCoefficients(refA, refB, refTheta, x)
		assert.InDelta(t, 0.1730597, c.A, 1e-7)
	}
}

func TestRoots_Reference(t *testing.T) {
	t.Parallel()

	upper, lower, ok := ellipsoid.Roots(ellipsoid.Coefficients{A: 0.17306, B: 0.784098, C: 0.878646})
	require.True(t, ok)

	assert.InDelta(t, -2.03111, upper, tolerance5)
	assert.InDelta(t, -2.49968, lower, tolerance5)
	assert.Greater(t, upper, lower)
}

func TestRoots_NegativeDiscriminantIsSkipped(t *testing.T) {
	t.Parallel()

	// Unit circle at x = 2: y² + 3 = 0 has no real solution.
	c := ellipsoid.NewCoefficients(1, 1, 0, 2)
	require.Negative(t, c.Discriminant())

	_, _, ok := ellipsoid.Roots(c)
	assert.False(t, ok)
}

func TestEstimateOrientation(t *testing.T) {
	t.Parallel()

	theta, err := ellipsoid.EstimateOrientation(refSeries)
	require.NoError(t, err)

	// Signed: humidity falls as temperature rises in the reference series.
	assert.InDelta(t, -0.343023940421, theta, 1e-9)
	assert.Greater(t, theta, -math.Pi/2)
	assert.Less(t, theta, math.Pi/2)
}

func TestEstimateOrientation_Degenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		series reading.Series
	}{
		{name: "equal_x", series: reading.Series{{X: 2, Y: 1}, {X: 2, Y: 5}, {X: 2, Y: 9}}},
		{name: "equal_fractional_x", series: reading.Series{{X: 0.1, Y: 1}, {X: 0.1, Y: 2}, {X: 0.1, Y: 3}}},
		{name: "single_reading", series: reading.Series{{X: 1, Y: 1}}},
		{name: "empty", series: nil},
		{name: "nan_x", series: reading.Series{{X: 1, Y: 1}, {X: math.NaN(), Y: 2}, {X: 3, Y: 3}}},
		{name: "nan_y", series: reading.Series{{X: 1, Y: 1}, {X: 2, Y: math.NaN()}, {X: 3, Y: 3}}},
		{name: "infinite_x", series: reading.Series{{X: 1, Y: 1}, {X: math.Inf(1), Y: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ellipsoid.EstimateOrientation(tt.series)
			require.ErrorIs(t, err, ellipsoid.ErrDegenerateOrientation)
		})
	}
}

func TestCompute_FixedTheta(t *testing.T) {
	t.Parallel()

	series := reading.Series{{X: 0, Y: 0}, {X: 0.5, Y: 3}, {X: 2, Y: 0}, {X: -1, Y: 0}}

	params, err := ellipsoid.Compute(series, ellipsoid.Shape{AxisA: 1, AxisB: 1, FixedTheta: true})
	require.NoError(t, err)

	assert.False(t, params.ThetaEstimated)
	assert.Equal(t, series, params.Source)
	assert.Equal(t, 1, params.Skipped)
	require.Len(t, params.Boundary, 3)

	assert.InDelta(t, 0.0, params.Boundary[0].X, 0)
	assert.InDelta(t, 1.0, params.Boundary[0].YUpper, 1e-12)
	assert.InDelta(t, -1.0, params.Boundary[0].YLower, 1e-12)

	assert.InDelta(t, 0.5, params.Boundary[1].X, 0)
	assert.InDelta(t, math.Sqrt(0.75), params.Boundary[1].YUpper, 1e-12)
	assert.InDelta(t, -math.Sqrt(0.75), params.Boundary[1].YLower, 1e-12)

	// x = -1 touches the ellipse: a single (double) root.
	assert.InDelta(t, 0.0, params.Boundary[2].YUpper, 1e-12)
	assert.InDelta(t, 0.0, params.Boundary[2].YLower, 1e-12)
}

func TestCompute_EstimatedTheta(t *testing.T) {
	t.Parallel()

	params, err := ellipsoid.Compute(refSeries, ellipsoid.Shape{AxisA: refA, AxisB: refB})
	require.NoError(t, err)

	assert.True(t, params.ThetaEstimated)
	assert.InDelta(t, -0.343023940421, params.Theta, 1e-9)
	assert.Equal(t, len(refSeries), len(params.Boundary)+params.Skipped)

	for _, bp := range params.Boundary {
		c := params.Coefficients(bp.X)
		assert.InDelta(t, 0.0, c.Evaluate(bp.YUpper), 1e-9)
		assert.InDelta(t, 0.0, c.Evaluate(bp.YLower), 1e-9)
		assert.GreaterOrEqual(t, bp.YUpper, bp.YLower)
	}
}

func TestCompute_Errors(t *testing.T) {
	t.Parallel()

	_, err := ellipsoid.Compute(refSeries, ellipsoid.Shape{AxisA: 0, AxisB: 1})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateEllipsoid)

	_, err = ellipsoid.Compute(refSeries, ellipsoid.Shape{AxisA: 1, AxisB: -2, FixedTheta: true})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateEllipsoid)

	equalX := reading.Series{{X: 4, Y: 1}, {X: 4, Y: 2}}
	_, err = ellipsoid.Compute(equalX, ellipsoid.Shape{AxisA: 1, AxisB: 1})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateOrientation)

	nonFinite := reading.Series{{X: 1, Y: 1}, {X: math.NaN(), Y: 2}, {X: 3, Y: 3}}
	_, err = ellipsoid.Compute(nonFinite, ellipsoid.Shape{AxisA: 1, AxisB: 1, FixedTheta: true})
	require.ErrorIs(t, err, reading.ErrNonFinite)

	_, err = ellipsoid.Compute(refSeries, ellipsoid.Shape{AxisA: math.NaN(), AxisB: 1})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateEllipsoid)

	_, err = ellipsoid.Compute(refSeries, ellipsoid.Shape{AxisA: 1, AxisB: math.Inf(1)})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateEllipsoid)

	_, err = ellipsoid.Compute(refSeries, ellipsoid.Shape{AxisA: 1, AxisB: 1, Theta: math.NaN(), FixedTheta: true})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateEllipsoid)

	// A supplied theta does not need the series to be orientable.
	params, err := ellipsoid.Compute(equalX, ellipsoid.Shape{AxisA: 1, AxisB: 1, FixedTheta: true})
	require.NoError(t, err)
	assert.Equal(t, 2, params.Skipped)
}

func TestCompute_OutsideExtentDoesNotAbort(t *testing.T) {
	t.Parallel()

	series := reading.Series{{X: 50, Y: 0}, {X: -60, Y: 1}, {X: 0.25, Y: 0}}

	params, err := ellipsoid.Compute(series, ellipsoid.Shape{AxisA: 1, AxisB: 2, Theta: 0.3, FixedTheta: true})
	require.NoError(t, err)

	assert.Equal(t, 2, params.Skipped)
	require.Len(t, params.Boundary, 1)
	assert.InDelta(t, 0.25, params.Boundary[0].X, 0)
}

func TestAggregateRegion(t *testing.T) {
	t.Parallel()

	agg, err := ellipsoid.AggregateRegion([]*ellipsoid.Parameters{
		{AxisA: 1, AxisB: 2, Theta: 0.1, Boundary: []ellipsoid.BoundaryPoint{{X: 1}}},
		{AxisA: 3, AxisB: 4, Theta: 0.3},
	})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, agg.AxisA, 1e-12)
	assert.InDelta(t, 3.0, agg.AxisB, 1e-12)
	assert.InDelta(t, 0.2, agg.Theta, 1e-12)
	assert.Empty(t, agg.Boundary, "boundary points are recomputed, never averaged")
}

func TestAggregateRegion_Errors(t *testing.T) {
	t.Parallel()

	_, err := ellipsoid.AggregateRegion(nil)
	require.ErrorIs(t, err, stats.ErrEmptyInput)

	_, err = ellipsoid.AggregateRegion([]*ellipsoid.Parameters{{AxisA: 1, AxisB: 1}, {AxisA: 0, AxisB: 1}})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateEllipsoid)

	_, err = ellipsoid.AggregateRegion([]*ellipsoid.Parameters{nil})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateEllipsoid)

	_, err = ellipsoid.AggregateRegion([]*ellipsoid.Parameters{{AxisA: 1, AxisB: 1}, {AxisA: 1, AxisB: 1, Theta: math.NaN()}})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateEllipsoid)

	_, err = ellipsoid.AggregateRegion([]*ellipsoid.Parameters{{AxisA: math.NaN(), AxisB: 1}})
	require.ErrorIs(t, err, ellipsoid.ErrDegenerateEllipsoid)
}

func TestRecompute(t *testing.T) {
	t.Parallel()

	agg := &ellipsoid.Parameters{AxisA: 1, AxisB: 1, Theta: 0}
	series := reading.Series{{X: 0, Y: 0}, {X: 3, Y: 0}}

	out := agg.Recompute(series)

	assert.Empty(t, agg.Boundary, "receiver is not modified")
	assert.Len(t, out.Boundary, 1)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, series, out.Source)
}
