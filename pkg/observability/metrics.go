package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRunsTotal       = "ebm.runs.total"
	metricSensorsTotal    = "ebm.sensors.total"
	metricRegionsTotal    = "ebm.regions.total"
	metricReadingsTotal   = "ebm.readings.classified.total"
	metricStageDuration   = "ebm.stage.duration.seconds"
	metricBoundarySkipped = "ebm.boundary.skipped.total"

	attrStage   = "stage"
	attrStatus  = "status"
	attrVerdict = "verdict"

	// StatusOK marks a sensor, region or run that completed.
	StatusOK = "ok"
	// StatusFailed marks a sensor, region or run that returned an error.
	StatusFailed = "failed"
	// StatusSkipped marks a sensor with too few readings to model.
	StatusSkipped = "skipped"

	verdictNormal  = "normal"
	verdictAnomaly = "anomaly"
)

// durationBucketBoundaries spans 100µs to 60s: a single sensor stage is
// sub-millisecond, a whole IBRL run a few seconds.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60}

// PipelineMetrics holds the OTel instruments recorded by a pipeline run.
// All methods are safe on a nil receiver.
type PipelineMetrics struct {
	runsTotal       metric.Int64Counter
	sensorsTotal    metric.Int64Counter
	regionsTotal    metric.Int64Counter
	readingsTotal   metric.Int64Counter
	stageDuration   metric.Float64Histogram
	boundarySkipped metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments from mt.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	runs, err := mt.Int64Counter(metricRunsTotal,
		metric.WithDescription("Pipeline runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunsTotal, err)
	}

	sensors, err := mt.Int64Counter(metricSensorsTotal,
		metric.WithDescription("Sensors modeled by outcome"),
		metric.WithUnit("{sensor}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSensorsTotal, err)
	}

	regions, err := mt.Int64Counter(metricRegionsTotal,
		metric.WithDescription("Regions aggregated by outcome"),
		metric.WithUnit("{region}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRegionsTotal, err)
	}

	readings, err := mt.Int64Counter(metricReadingsTotal,
		metric.WithDescription("Readings classified by verdict"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricReadingsTotal, err)
	}

	stageDur, err := mt.Float64Histogram(metricStageDuration,
		metric.WithDescription("Per-sensor stage duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStageDuration, err)
	}

	skipped, err := mt.Int64Counter(metricBoundarySkipped,
		metric.WithDescription("Readings outside the ellipse extent with no boundary point"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBoundarySkipped, err)
	}

	return &PipelineMetrics{
		runsTotal:       runs,
		sensorsTotal:    sensors,
		regionsTotal:    regions,
		readingsTotal:   readings,
		stageDuration:   stageDur,
		boundarySkipped: skipped,
	}, nil
}

// RecordRun counts one finished run.
func (pm *PipelineMetrics) RecordRun(ctx context.Context, status string) {
	if pm == nil {
		return
	}

	pm.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordSensor counts one sensor outcome.
func (pm *PipelineMetrics) RecordSensor(ctx context.Context, status string) {
	if pm == nil {
		return
	}

	pm.sensorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordRegion counts one region outcome.
func (pm *PipelineMetrics) RecordRegion(ctx context.Context, status string) {
	if pm == nil {
		return
	}

	pm.regionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordStage records how long one per-sensor stage took.
func (pm *PipelineMetrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if pm == nil {
		return
	}

	pm.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrStage, stage)))
}

// RecordClassification counts the verdicts of one sensor.
func (pm *PipelineMetrics) RecordClassification(ctx context.Context, normal, anomalies int) {
	if pm == nil {
		return
	}

	pm.readingsTotal.Add(ctx, int64(normal), metric.WithAttributes(attribute.String(attrVerdict, verdictNormal)))
	pm.readingsTotal.Add(ctx, int64(anomalies), metric.WithAttributes(attribute.String(attrVerdict, verdictAnomaly)))
}

// RecordBoundarySkipped counts readings that produced no boundary point.
func (pm *PipelineMetrics) RecordBoundarySkipped(ctx context.Context, n int) {
	if pm == nil || n == 0 {
		return
	}

	pm.boundarySkipped.Add(ctx, int64(n))
}
