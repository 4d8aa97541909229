// Package reading defines the paired sensor measurements consumed by the
// ellipsoid boundary modeling pipeline.
package reading

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// ErrNonFinite is returned for a reading with a NaN or infinite axis.
var ErrNonFinite = errors.New("non-finite reading")

// Reading is one paired measurement of a sensor: X is the temperature and
// Y the humidity. Readings are values and never mutated once recorded.
type Reading struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Sub returns the componentwise difference r - other.
func (r Reading) Sub(other Reading) Reading {
	return Reading{X: r.X - other.X, Y: r.Y - other.Y}
}

// Add returns the componentwise sum r + other.
func (r Reading) Add(other Reading) Reading {
	return Reading{X: r.X + other.X, Y: r.Y + other.Y}
}

// Finite reports whether both axes of r are finite numbers.
func (r Reading) Finite() bool {
	return isFinite(r.X) && isFinite(r.Y)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Series is the ordered sequence of readings of one sensor.
type Series []Reading

// Xs returns the X (temperature) axis of the series.
func (s Series) Xs() []float64 {
	xs := make([]float64, len(s))

	for i, r := range s {
		xs[i] = r.X
	}

	return xs
}

// Ys returns the Y (humidity) axis of the series.
func (s Series) Ys() []float64 {
	ys := make([]float64, len(s))

	for i, r := range s {
		ys[i] = r.Y
	}

	return ys
}

// CheckFinite returns ErrNonFinite for the first reading of s with a NaN or
// infinite axis.
func (s Series) CheckFinite() error {
	for i, r := range s {
		if !r.Finite() {
			return fmt.Errorf("%w: index %d: (%g, %g)", ErrNonFinite, i, r.X, r.Y)
		}
	}

	return nil
}

// Clone returns a copy of the series that shares no memory with s.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}

	return slices.Clone(s)
}

// SensorSet maps a sensor identifier to its readings.
type SensorSet map[string]Series

// IDs returns the sensor identifiers in lexical order.
func (ss SensorSet) IDs() []string {
	return slices.Sorted(maps.Keys(ss))
}

// Len returns the total number of readings across all sensors.
func (ss SensorSet) Len() int {
	total := 0

	for _, series := range ss {
		total += len(series)
	}

	return total
}

// Append adds readings to the sensor with the given id.
func (ss SensorSet) Append(id string, readings ...Reading) {
	ss[id] = append(ss[id], readings...)
}
