// Package report turns a pipeline result into its serialisable view, with
// every reading mapped back to raw sensor units, and renders it.
package report

import (
	"maps"
	"slices"

	"github.com/Sumatoshi-tech/ebm/pkg/alg/stats"
	"github.com/Sumatoshi-tech/ebm/pkg/dataset"
	"github.com/Sumatoshi-tech/ebm/pkg/ellipsoid"
	"github.com/Sumatoshi-tech/ebm/pkg/pipeline"
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
	"github.com/Sumatoshi-tech/ebm/pkg/transform"
)

// Report is the serialisable outcome of one run.
type Report struct {
	RunID      string     `json:"run_id"             yaml:"run_id"`
	Input      *Input     `json:"input,omitempty"    yaml:"input,omitempty"`
	Parameters Parameters `json:"parameters"         yaml:"parameters"`
	Summary    Summary    `json:"summary"            yaml:"summary"`
	Regions    []Region   `json:"regions"            yaml:"regions"`
	Sensors    []Sensor   `json:"sensors"            yaml:"sensors"`
	Skipped    []string   `json:"skipped,omitempty"  yaml:"skipped,omitempty"`
	Failures   []Failure  `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Input describes where the readings came from.
type Input struct {
	Path  string        `json:"path"  yaml:"path"`
	Stats dataset.Stats `json:"stats" yaml:"stats"`
}

// Parameters echoes the model configuration of the run.
type Parameters struct {
	AxisA       float64  `json:"a"               yaml:"a"`
	AxisB       float64  `json:"b"               yaml:"b"`
	Theta       *float64 `json:"theta,omitempty" yaml:"theta,omitempty"`
	Seed        uint64   `json:"seed"            yaml:"seed"`
	Standardize bool     `json:"standardize"     yaml:"standardize"`
	Workers     int      `json:"workers"         yaml:"workers"`
}

// Summary holds run-wide counts.
type Summary struct {
	Sensors   int `json:"sensors"   yaml:"sensors"`
	Modeled   int `json:"modeled"   yaml:"modeled"`
	Skipped   int `json:"skipped"   yaml:"skipped"`
	Failed    int `json:"failed"    yaml:"failed"`
	Regions   int `json:"regions"   yaml:"regions"`
	Normal    int `json:"normal"    yaml:"normal"`
	Anomalies int `json:"anomalies" yaml:"anomalies"`
}

// Region is one region aggregate. Theta spread is taken over the member
// sensors' own fits.
type Region struct {
	Name        string   `json:"name"                   yaml:"name"`
	Sensors     []string `json:"sensors"                yaml:"sensors"`
	Modeled     int      `json:"modeled"                yaml:"modeled"`
	AxisA       float64  `json:"a,omitempty"            yaml:"a,omitempty"`
	AxisB       float64  `json:"b,omitempty"            yaml:"b,omitempty"`
	Theta       float64  `json:"theta,omitempty"        yaml:"theta,omitempty"`
	ThetaMin    float64  `json:"theta_min,omitempty"    yaml:"theta_min,omitempty"`
	ThetaMax    float64  `json:"theta_max,omitempty"    yaml:"theta_max,omitempty"`
	ThetaMedian float64  `json:"theta_median,omitempty" yaml:"theta_median,omitempty"`
	Error       string   `json:"error,omitempty"        yaml:"error,omitempty"`
}

// Sensor is the per-sensor view.
type Sensor struct {
	ID                string    `json:"id"                  yaml:"id"`
	Region            string    `json:"region"              yaml:"region"`
	Readings          int       `json:"readings"            yaml:"readings"`
	MeanTemperature   float64   `json:"mean_temperature"    yaml:"mean_temperature"`
	MeanHumidity      float64   `json:"mean_humidity"       yaml:"mean_humidity"`
	StdDevTemperature float64   `json:"stddev_temperature"  yaml:"stddev_temperature"`
	StdDevHumidity    float64   `json:"stddev_humidity"     yaml:"stddev_humidity"`
	Theta             float64   `json:"theta"               yaml:"theta"`
	BoundaryPoints    int       `json:"boundary_points"     yaml:"boundary_points"`
	OutsideExtent     int       `json:"outside_extent"      yaml:"outside_extent"`
	Normal            int       `json:"normal"              yaml:"normal"`
	Anomalies         []Anomaly `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
}

// Anomaly is one flagged reading in raw units. Score is the conic value
// against the region ellipse; Distance is the sigma-normalised distance from
// the sensor mean.
type Anomaly struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Humidity    float64 `json:"humidity"    yaml:"humidity"`
	Score       float64 `json:"score"       yaml:"score"`
	Distance    float64 `json:"distance"    yaml:"distance"`
}

// Failure is a sensor that could not be modeled.
type Failure struct {
	Sensor string `json:"sensor" yaml:"sensor"`
	Stage  string `json:"stage"  yaml:"stage"`
	Error  string `json:"error"  yaml:"error"`
}

// Build assembles the report of result. input may be nil.
func Build(result *pipeline.Result, input *Input) *Report {
	opts := result.Options

	rep := &Report{
		RunID: result.RunID,
		Input: input,
		Parameters: Parameters{
			AxisA:       opts.Shape.AxisA,
			AxisB:       opts.Shape.AxisB,
			Seed:        opts.Seed,
			Standardize: opts.Standardize,
			Workers:     opts.Workers,
		},
		Skipped: slices.Clone(result.Skipped),
	}

	if opts.Shape.FixedTheta {
		theta := opts.Shape.Theta
		rep.Parameters.Theta = &theta
	}

	rep.Regions = buildRegions(result)

	for _, id := range slices.Sorted(maps.Keys(result.Sensors)) {
		rep.Sensors = append(rep.Sensors, buildSensor(result, result.Sensors[id]))
	}

	for _, f := range result.Failures {
		rep.Failures = append(rep.Failures, Failure{Sensor: f.SensorID, Stage: f.Stage, Error: f.Err.Error()})
	}

	rep.Summary = Summary{
		Sensors:   len(result.Sensors) + len(result.Skipped) + len(result.Failures),
		Modeled:   len(result.Sensors),
		Skipped:   len(result.Skipped),
		Failed:    len(result.Failures),
		Regions:   len(result.Regions),
		Normal:    result.NormalCount(),
		Anomalies: result.AnomalyCount(),
	}

	return rep
}

func buildRegions(result *pipeline.Result) []Region {
	failed := make(map[string]string, len(result.RegionFailures))
	for _, f := range result.RegionFailures {
		failed[f.Region] = f.Err.Error()
	}

	regions := make([]Region, 0, len(result.Members))

	for _, name := range slices.Sorted(maps.Keys(result.Members)) {
		region := Region{Name: name, Sensors: slices.Clone(result.Members[name]), Error: failed[name]}

		thetas := make([]float64, 0, len(region.Sensors))

		for _, id := range region.Sensors {
			if sr, ok := result.Sensors[id]; ok {
				thetas = append(thetas, sr.Ellipsoid.Theta)
			}
		}

		region.Modeled = len(thetas)

		if agg, ok := result.Regions[name]; ok {
			region.AxisA, region.AxisB, region.Theta = agg.AxisA, agg.AxisB, agg.Theta
			// thetas is non-empty whenever the region aggregated.
			region.ThetaMin, region.ThetaMax, _ = stats.MinMax(thetas)
			region.ThetaMedian = stats.Median(thetas)
		}

		regions = append(regions, region)
	}

	return regions
}

func buildSensor(result *pipeline.Result, sr *pipeline.SensorResult) Sensor {
	out := Sensor{
		ID:                sr.SensorID,
		Region:            sr.Region,
		Readings:          sr.Readings,
		MeanTemperature:   sr.MeanTemperature,
		MeanHumidity:      sr.MeanHumidity,
		StdDevTemperature: sr.StdDevTemperature,
		StdDevHumidity:    sr.StdDevHumidity,
		Theta:             sr.Ellipsoid.Theta,
		BoundaryPoints:    len(sr.Ellipsoid.Boundary),
		OutsideExtent:     sr.Ellipsoid.Skipped,
		Normal:            len(result.Normal[sr.SensorID]),
	}

	agg := result.Regions[sr.Region]
	if agg == nil {
		return out
	}

	for _, c := range ellipsoid.ClassifySeries(result.Anomalies[sr.SensorID], agg) {
		raw := sr.Standardization.Invert(c.Reading)

		// A sensor with a constant axis has no distance; it stays zero.
		dist, _ := transform.Distance(raw, reading.Reading{X: sr.MeanTemperature, Y: sr.MeanHumidity}, sr.StdDevTemperature, sr.StdDevHumidity)

		out.Anomalies = append(out.Anomalies, Anomaly{
			Temperature: raw.X,
			Humidity:    raw.Y,
			Score:       c.Score,
			Distance:    dist,
		})
	}

	return out
}
