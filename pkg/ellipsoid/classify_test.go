package ellipsoid_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ebm/pkg/ellipsoid"
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
	"github.com/Sumatoshi-tech/ebm/pkg/transform"
)

func refAggregate() *ellipsoid.Parameters {
	return &ellipsoid.Parameters{AxisA: refA, AxisB: refB, Theta: refTheta}
}

func TestIsAnomaly_Boundary(t *testing.T) {
	t.Parallel()

	agg := refAggregate()

	// Closest boundary points to the centre along the vertical through it.
	c := agg.Coefficients(0)
	top := reading.Reading{X: 0, Y: 1 / math.Sqrt(c.A)}
	bottom := reading.Reading{X: 0, Y: -1 / math.Sqrt(c.A)}

	assert.False(t, ellipsoid.IsAnomaly(top, agg))
	assert.False(t, ellipsoid.IsAnomaly(bottom, agg))

	for _, x := range []float64{-1, 0.5, 1.2} {
		upper, lower, ok := ellipsoid.Roots(agg.Coefficients(x))
		require.True(t, ok)

		assert.False(t, ellipsoid.IsAnomaly(reading.Reading{X: x, Y: upper}, agg), "x=%g upper", x)
		assert.False(t, ellipsoid.IsAnomaly(reading.Reading{X: x, Y: lower}, agg), "x=%g lower", x)
	}
}

func TestIsAnomaly_InsideAndFarOutside(t *testing.T) {
	t.Parallel()

	agg := refAggregate()

	assert.False(t, ellipsoid.IsAnomaly(reading.Reading{}, agg), "centre is normal")
	assert.Negative(t, ellipsoid.Score(reading.Reading{}, agg))

	far := reading.Reading{X: 100 * refA, Y: 100 * refB}
	assert.True(t, ellipsoid.IsAnomaly(far, agg))
	assert.True(t, ellipsoid.IsAnomaly(reading.Reading{X: -100 * refA, Y: 0}, agg))
	assert.True(t, ellipsoid.IsAnomaly(reading.Reading{X: 0, Y: -100 * refB}, agg))
}

func TestIsAnomaly_Deterministic(t *testing.T) {
	t.Parallel()

	agg := refAggregate()
	r := reading.Reading{X: 1.3, Y: -2.2}

	first := ellipsoid.IsAnomaly(r, agg)
	for range 100 {
		assert.Equal(t, first, ellipsoid.IsAnomaly(r, agg))
	}
}

func TestClassifySeries(t *testing.T) {
	t.Parallel()

	agg := &ellipsoid.Parameters{AxisA: 1, AxisB: 1}
	series := reading.Series{{X: 0, Y: 0}, {X: 3, Y: 3}, {X: 0, Y: 1}}

	out := ellipsoid.ClassifySeries(series, agg)
	require.Len(t, out, 3)

	assert.False(t, out[0].Anomalous)
	assert.InDelta(t, -1.0, out[0].Score, 1e-12)
	assert.True(t, out[1].Anomalous)
	assert.InDelta(t, 17.0, out[1].Score, 1e-12)
	assert.False(t, out[2].Anomalous)
	assert.Equal(t, 2, out[2].Index)
}

func TestClassifyDifferences(t *testing.T) {
	t.Parallel()

	agg := &ellipsoid.Parameters{AxisA: 1, AxisB: 1}

	lookup := map[string]transform.LookupTable{
		"inside":  transform.SuccessiveDifference(reading.Series{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}}).Lookup,
		"mixed":   transform.SuccessiveDifference(reading.Series{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 0.1, Y: 0}}).Lookup,
		"outside": transform.SuccessiveDifference(reading.Series{{X: 9, Y: 9}, {X: -9, Y: 9}}).Lookup,
	}

	normal, anomalies := ellipsoid.ClassifyDifferences(lookup, agg)

	assert.Equal(t, reading.Series{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}}, normal["inside"])
	assert.NotContains(t, anomalies, "inside")

	assert.Equal(t, reading.Series{{X: 0, Y: 0}, {X: 0.1, Y: 0}}, normal["mixed"])
	assert.Equal(t, reading.Series{{X: 5, Y: 5}}, anomalies["mixed"])

	assert.Equal(t, reading.Series{{X: 9, Y: 9}, {X: -9, Y: 9}}, anomalies["outside"])
	assert.NotContains(t, normal, "outside")
}

func TestClassifyDifferences_Empty(t *testing.T) {
	t.Parallel()

	normal, anomalies := ellipsoid.ClassifyDifferences(nil, refAggregate())

	assert.NotNil(t, normal)
	assert.NotNil(t, anomalies)
	assert.Empty(t, normal)
	assert.Empty(t, anomalies)

	normal, anomalies = ellipsoid.ClassifyDifferences(map[string]transform.LookupTable{"1": nil}, refAggregate())
	assert.Empty(t, normal)
	assert.Empty(t, anomalies)
}
