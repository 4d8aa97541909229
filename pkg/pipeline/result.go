package pipeline

import (
	"fmt"

	"github.com/Sumatoshi-tech/ebm/pkg/ellipsoid"
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
	"github.com/Sumatoshi-tech/ebm/pkg/transform"
)

// Per-sensor stages, as reported in SensorFailure.Stage.
const (
	StageStandardize = "standardize"
	StageDifference  = "difference"
	StageModel       = "model"
	StageClassify    = "classify"
)

// SensorFailure records why one sensor produced no model.
type SensorFailure struct {
	SensorID string
	Stage    string
	Err      error
}

func (f SensorFailure) Error() string {
	return fmt.Sprintf("sensor %s: %s: %v", f.SensorID, f.Stage, f.Err)
}

func (f SensorFailure) Unwrap() error { return f.Err }

// RegionFailure records why one region has no aggregate.
type RegionFailure struct {
	Region string
	Err    error
}

func (f RegionFailure) Error() string {
	return fmt.Sprintf("region %s: %v", f.Region, f.Err)
}

func (f RegionFailure) Unwrap() error { return f.Err }

// SensorResult is everything computed for one successfully modeled sensor.
// Readings, differences and boundaries live in the modeling space: z-scores
// when the run standardizes, raw units otherwise. Standardization maps them
// back.
type SensorResult struct {
	SensorID string
	Region   string

	// Readings is the number of raw readings of the sensor.
	Readings int

	// Raw-unit moments of the sensor's readings (population deviation).
	MeanTemperature   float64
	MeanHumidity      float64
	StdDevTemperature float64
	StdDevHumidity    float64

	Standardization transform.Standardization
	Difference      transform.Difference

	// Ellipsoid is the sensor's own fit over its differences.
	Ellipsoid *ellipsoid.Parameters

	// RegionBoundary is the region aggregate evaluated over the sensor's
	// differences. Nil when the region failed to aggregate.
	RegionBoundary *ellipsoid.Parameters
}

// Result is the outcome of one run.
type Result struct {
	RunID   string
	Options Options

	// Sensors holds every sensor that was modeled, keyed by id.
	Sensors map[string]*SensorResult

	// Regions holds the aggregate ellipse of every region that had at least
	// one modeled sensor.
	Regions map[string]*ellipsoid.Parameters

	// Members lists the sensor ids assigned to each region.
	Members map[string][]string

	// Normal and Anomalies bucket the source readings of every classified
	// sensor, in the modeling space.
	Normal    map[string]reading.Series
	Anomalies map[string]reading.Series

	// Skipped lists sensors with fewer than two readings.
	Skipped []string

	Failures       []SensorFailure
	RegionFailures []RegionFailure
}

// AnomalyCount returns the number of anomalous readings across all sensors.
func (r *Result) AnomalyCount() int {
	n := 0
	for _, series := range r.Anomalies {
		n += len(series)
	}

	return n
}

// NormalCount returns the number of normal readings across all sensors.
func (r *Result) NormalCount() int {
	n := 0
	for _, series := range r.Normal {
		n += len(series)
	}

	return n
}
