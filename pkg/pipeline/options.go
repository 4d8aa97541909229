// Package pipeline runs the ellipsoid boundary model over a batch of sensors:
// every sensor is prepared and fitted on its own, the fits of each region are
// averaged once all sensors are done, and every sensor's readings are then
// classified against its region's ellipse.
package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"runtime"
	"slices"

	"github.com/Sumatoshi-tech/ebm/pkg/ellipsoid"
)

// Default semi-axes of the fitted ellipse, in standard deviations.
const (
	DefaultAxisA = 1.7601
	DefaultAxisB = 4.1168
)

// Region names used when sensors are not grouped explicitly.
const (
	// DefaultRegion holds every sensor when no regions are configured.
	DefaultRegion = "all"
	// UnassignedRegion holds sensors missing from every configured region.
	UnassignedRegion = "unassigned"
)

// Option validation errors.
var (
	ErrInvalidWorkers     = errors.New("workers must be positive")
	ErrInvalidAxes        = errors.New("ellipse semi-axes must be positive and finite")
	ErrInvalidTheta       = errors.New("ellipse orientation must be finite")
	ErrOverlappingRegions = errors.New("sensor belongs to more than one region")
	ErrEmptyRegionName    = errors.New("region name must not be empty")
)

// Options configures a Runner.
type Options struct {
	// Regions groups sensor ids by region name. Empty puts every sensor in
	// DefaultRegion.
	Regions map[string][]string

	// Shape is the ellipse fitted to every sensor.
	Shape ellipsoid.Shape

	// Seed fixes the shuffle permutation of every sensor.
	Seed uint64

	// Workers bounds the number of sensors processed concurrently.
	Workers int

	// Standardize z-scores every sensor before modeling.
	Standardize bool
}

// DefaultOptions returns the options of a plain `ebm run`.
func DefaultOptions() Options {
	return Options{
		Shape:       ellipsoid.Shape{AxisA: DefaultAxisA, AxisB: DefaultAxisB},
		Workers:     runtime.GOMAXPROCS(0),
		Standardize: true,
	}
}

// Validate checks opts before a run.
func (o Options) Validate() error {
	if o.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, o.Workers)
	}

	if !positiveFinite(o.Shape.AxisA) || !positiveFinite(o.Shape.AxisB) {
		return fmt.Errorf("%w: a=%g b=%g", ErrInvalidAxes, o.Shape.AxisA, o.Shape.AxisB)
	}

	if math.IsNaN(o.Shape.Theta) || math.IsInf(o.Shape.Theta, 0) {
		return fmt.Errorf("%w: theta=%g", ErrInvalidTheta, o.Shape.Theta)
	}

	owner := make(map[string]string)

	for _, name := range slices.Sorted(maps.Keys(o.Regions)) {
		if name == "" {
			return ErrEmptyRegionName
		}

		for _, id := range o.Regions[name] {
			if prev, ok := owner[id]; ok && prev != name {
				return fmt.Errorf("%w: %s in %s and %s", ErrOverlappingRegions, id, prev, name)
			}

			owner[id] = name
		}
	}

	return nil
}

// regionOf assigns every sensor in ids to a region and returns the members of
// each region in sorted order. Configured ids that are not in the batch are
// ignored.
func (o Options) regionOf(ids []string) map[string][]string {
	members := make(map[string][]string)

	if len(o.Regions) == 0 {
		if len(ids) > 0 {
			members[DefaultRegion] = slices.Clone(ids)
		}

		return members
	}

	owner := make(map[string]string)

	for name, list := range o.Regions {
		for _, id := range list {
			owner[id] = name
		}

		// Configured regions are reported even when none of their sensors
		// made it into the batch.
		members[name] = nil
	}

	for _, id := range ids {
		name, ok := owner[id]
		if !ok {
			name = UnassignedRegion
		}

		members[name] = append(members[name], id)
	}

	for name := range members {
		slices.Sort(members[name])
	}

	return members
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
