package transform

import (
	"errors"
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/ebm/pkg/alg/stats"
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
)

// ErrDivideByZero is returned when a normalisation would divide by a zero
// standard deviation.
var ErrDivideByZero = errors.New("divide by zero")

// Standardization holds the per-axis moments used to z-score a series.
type Standardization struct {
	MeanX   float64 `json:"mean_x"   yaml:"mean_x"`
	StdDevX float64 `json:"stddev_x" yaml:"stddev_x"`
	MeanY   float64 `json:"mean_y"   yaml:"mean_y"`
	StdDevY float64 `json:"stddev_y" yaml:"stddev_y"`
}

// Identity leaves readings unchanged under Apply and Invert.
var Identity = Standardization{StdDevX: 1, StdDevY: 1}

// Apply maps a raw reading into standardized space.
func (s Standardization) Apply(r reading.Reading) reading.Reading {
	return reading.Reading{
		X: (r.X - s.MeanX) / s.StdDevX,
		Y: (r.Y - s.MeanY) / s.StdDevY,
	}
}

// Invert maps a standardized reading back to raw measurement units.
func (s Standardization) Invert(r reading.Reading) reading.Reading {
	return reading.Reading{
		X: r.X*s.StdDevX + s.MeanX,
		Y: r.Y*s.StdDevY + s.MeanY,
	}
}

// InvertSeries maps every reading of series back to raw units.
func (s Standardization) InvertSeries(series reading.Series) reading.Series {
	out := make(reading.Series, len(series))

	for i, r := range series {
		out[i] = s.Invert(r)
	}

	return out
}

// Standardize z-scores each axis of series independently. A constant axis
// has no spread to normalise by and fails with ErrDivideByZero; a NaN or
// infinite reading fails with reading.ErrNonFinite.
func Standardize(series reading.Series) (reading.Series, Standardization, error) {
	meanX, sdX, err := stats.MeanStdDev(series.Xs())
	if err != nil {
		return nil, Standardization{}, fmt.Errorf("standardize temperature: %w", err)
	}

	meanY, sdY, err := stats.MeanStdDev(series.Ys())
	if err != nil {
		return nil, Standardization{}, fmt.Errorf("standardize humidity: %w", err)
	}

	if !finite(meanX, sdX, meanY, sdY) {
		return nil, Standardization{}, fmt.Errorf("standardize: %w", reading.ErrNonFinite)
	}

	if sdX == 0 {
		return nil, Standardization{}, fmt.Errorf("standardize temperature: %w: zero standard deviation", ErrDivideByZero)
	}

	if sdY == 0 {
		return nil, Standardization{}, fmt.Errorf("standardize humidity: %w: zero standard deviation", ErrDivideByZero)
	}

	params := Standardization{MeanX: meanX, StdDevX: sdX, MeanY: meanY, StdDevY: sdY}

	out := make(reading.Series, len(series))
	for i, r := range series {
		out[i] = params.Apply(r)
	}

	return out, params, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}

// Distance returns the Euclidean distance between p and q after scaling each
// axis by its standard deviation.
func Distance(p, q reading.Reading, sigmaX, sigmaY float64) (float64, error) {
	if sigmaX == 0 || sigmaY == 0 {
		return 0, fmt.Errorf("distance: %w", ErrDivideByZero)
	}

	return math.Hypot((p.X-q.X)/sigmaX, (p.Y-q.Y)/sigmaY), nil
}
