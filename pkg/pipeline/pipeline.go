package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/ebm/pkg/alg/stats"
	"github.com/Sumatoshi-tech/ebm/pkg/ellipsoid"
	"github.com/Sumatoshi-tech/ebm/pkg/observability"
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
	"github.com/Sumatoshi-tech/ebm/pkg/transform"
)

// Runner executes pipeline runs. A Runner is safe for concurrent use; every
// run allocates its own state.
type Runner struct {
	opts    Options
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.PipelineMetrics
}

// New returns a Runner. Nil logger, tracer and metrics are replaced by
// no-ops.
func New(opts Options, logger *slog.Logger, tracer trace.Tracer, metrics *observability.PipelineMetrics) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	return &Runner{opts: opts, logger: logger, tracer: tracer, metrics: metrics}
}

// sensorOutcome is the slot one sensor task writes. Tasks never share slots.
type sensorOutcome struct {
	result  *SensorResult
	failure *SensorFailure
	skipped bool
}

// Run models every sensor of set. Per-sensor and per-region problems are
// reported in the Result; the returned error is non-nil only for invalid
// options or a cancelled context.
func (r *Runner) Run(ctx context.Context, set reading.SensorSet) (*Result, error) {
	err := r.opts.Validate()
	if err != nil {
		return nil, fmt.Errorf("pipeline options: %w", err)
	}

	runID := uuid.New().String()
	logger := r.logger.With("run_id", runID)

	ctx, span := r.tracer.Start(ctx, "ebm.pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("pipeline.sensors", len(set)),
		attribute.Int("pipeline.readings", set.Len()),
		attribute.Int("pipeline.workers", r.opts.Workers),
		attribute.Bool("pipeline.standardize", r.opts.Standardize),
	))
	defer span.End()

	start := time.Now()

	result, err := r.run(ctx, logger, runID, set)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordRun(ctx, observability.StatusFailed)

		return nil, err
	}

	r.metrics.RecordRun(ctx, observability.StatusOK)

	logger.InfoContext(ctx, "pipeline run complete",
		"sensors", len(result.Sensors),
		"skipped", len(result.Skipped),
		"failed", len(result.Failures),
		"regions", len(result.Regions),
		"normal", result.NormalCount(),
		"anomalies", result.AnomalyCount(),
		"duration", time.Since(start),
	)

	return result, nil
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, runID string, set reading.SensorSet) (*Result, error) {
	ids := set.IDs()
	members := r.opts.regionOf(ids)

	region := make(map[string]string, len(ids))
	for name, list := range members {
		for _, id := range list {
			region[id] = name
		}
	}

	// Stage 1: prepare and fit every sensor.
	outcomes := make([]sensorOutcome, len(ids))

	err := r.forEach(ctx, len(ids), func(ctx context.Context, i int) {
		outcomes[i] = r.modelSensor(ctx, logger, ids[i], region[ids[i]], set[ids[i]])
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     runID,
		Options:   r.opts,
		Sensors:   make(map[string]*SensorResult),
		Regions:   make(map[string]*ellipsoid.Parameters),
		Members:   members,
		Normal:    make(map[string]reading.Series),
		Anomalies: make(map[string]reading.Series),
	}

	for i, out := range outcomes {
		switch {
		case out.skipped:
			result.Skipped = append(result.Skipped, ids[i])
		case out.failure != nil:
			result.Failures = append(result.Failures, *out.failure)
		default:
			result.Sensors[ids[i]] = out.result
		}
	}

	// Stage 2: the barrier. Every sensor task has returned.
	for _, name := range slices.Sorted(maps.Keys(members)) {
		agg, aggErr := r.aggregate(ctx, logger, name, members[name], result.Sensors)
		if aggErr != nil {
			result.RegionFailures = append(result.RegionFailures, RegionFailure{Region: name, Err: aggErr})

			continue
		}

		result.Regions[name] = agg
	}

	// Stage 3: classify every modeled sensor against its region.
	modeled := make([]string, 0, len(result.Sensors))

	for _, id := range ids {
		if sr, ok := result.Sensors[id]; ok && result.Regions[sr.Region] != nil {
			modeled = append(modeled, id)
		}
	}

	var mu sync.Mutex

	err = r.forEach(ctx, len(modeled), func(ctx context.Context, i int) {
		sr := result.Sensors[modeled[i]]
		normal, anomalies := r.classifySensor(ctx, sr, result.Regions[sr.Region])

		mu.Lock()
		defer mu.Unlock()

		if len(normal) > 0 {
			result.Normal[sr.SensorID] = normal
		}

		if len(anomalies) > 0 {
			result.Anomalies[sr.SensorID] = anomalies
		}
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// forEach runs task for 0..n-1 on at most Workers goroutines. Tasks report
// their own failures; only cancellation stops the loop.
func (r *Runner) forEach(ctx context.Context, n int, task func(ctx context.Context, i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i := range n {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			task(gctx, i)

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return fmt.Errorf("pipeline cancelled: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline cancelled: %w", err)
	}

	return nil
}

func (r *Runner) modelSensor(
	ctx context.Context, logger *slog.Logger, id, region string, series reading.Series,
) sensorOutcome {
	ctx, span := r.tracer.Start(ctx, "ebm.pipeline.sensor", trace.WithAttributes(
		attribute.String("sensor.id", id),
		attribute.String("region.name", region),
		attribute.Int("sensor.readings", len(series)),
	))
	defer span.End()

	if len(series) < 2 {
		logger.DebugContext(ctx, "sensor skipped", "sensor", id, "readings", len(series))
		r.metrics.RecordSensor(ctx, observability.StatusSkipped)

		return sensorOutcome{skipped: true}
	}

	fail := func(stage string, err error) sensorOutcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		logger.WarnContext(ctx, "sensor failed", "sensor", id, "stage", stage, "error", err)
		r.metrics.RecordSensor(ctx, observability.StatusFailed)

		return sensorOutcome{failure: &SensorFailure{SensorID: id, Stage: stage, Err: err}}
	}

	// The series has at least two readings, so the moments cannot fail.
	meanX, sdX, _ := stats.MeanStdDev(series.Xs())
	meanY, sdY, _ := stats.MeanStdDev(series.Ys())

	prepared, scale := series, transform.Identity

	if r.opts.Standardize {
		stageStart := time.Now()

		var err error

		prepared, scale, err = transform.Standardize(series)
		if err != nil {
			return fail(StageStandardize, err)
		}

		r.metrics.RecordStage(ctx, StageStandardize, time.Since(stageStart))
	}

	stageStart := time.Now()
	diff := transform.SuccessiveDifference(transform.Shuffle(prepared, transform.SensorSeed(r.opts.Seed, id)))
	r.metrics.RecordStage(ctx, StageDifference, time.Since(stageStart))

	stageStart = time.Now()

	params, err := ellipsoid.Compute(diff.Differences, r.opts.Shape)
	if err != nil {
		return fail(StageModel, err)
	}

	r.metrics.RecordStage(ctx, StageModel, time.Since(stageStart))
	r.metrics.RecordBoundarySkipped(ctx, params.Skipped)
	r.metrics.RecordSensor(ctx, observability.StatusOK)

	span.SetAttributes(
		attribute.Float64("sensor.theta", params.Theta),
		attribute.Int("sensor.boundary_points", len(params.Boundary)),
	)

	logger.DebugContext(ctx, "sensor modeled",
		"sensor", id,
		"region", region,
		"readings", len(series),
		"theta", params.Theta,
		"boundary_points", len(params.Boundary),
		"skipped_points", params.Skipped,
	)

	return sensorOutcome{result: &SensorResult{
		SensorID:          id,
		Region:            region,
		Readings:          len(series),
		MeanTemperature:   meanX,
		MeanHumidity:      meanY,
		StdDevTemperature: sdX,
		StdDevHumidity:    sdY,
		Standardization:   scale,
		Difference:        diff,
		Ellipsoid:         params,
	}}
}

func (r *Runner) aggregate(
	ctx context.Context, logger *slog.Logger, name string, ids []string, sensors map[string]*SensorResult,
) (*ellipsoid.Parameters, error) {
	ctx, span := r.tracer.Start(ctx, "ebm.pipeline.region", trace.WithAttributes(
		attribute.String("region.name", name),
		attribute.Int("region.sensors", len(ids)),
	))
	defer span.End()

	fits := make([]*ellipsoid.Parameters, 0, len(ids))

	for _, id := range ids {
		if sr, ok := sensors[id]; ok {
			fits = append(fits, sr.Ellipsoid)
		}
	}

	agg, err := ellipsoid.AggregateRegion(fits)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate")
		logger.WarnContext(ctx, "region failed", "region", name, "sensors", len(ids), "error", err)
		r.metrics.RecordRegion(ctx, observability.StatusFailed)

		return nil, err
	}

	r.metrics.RecordRegion(ctx, observability.StatusOK)
	logger.DebugContext(ctx, "region aggregated",
		"region", name, "modeled", len(fits), "a", agg.AxisA, "b", agg.AxisB, "theta", agg.Theta)

	return agg, nil
}

func (r *Runner) classifySensor(
	ctx context.Context, sr *SensorResult, agg *ellipsoid.Parameters,
) (normal, anomalies reading.Series) {
	stageStart := time.Now()

	sr.RegionBoundary = agg.Recompute(sr.Difference.Differences)

	normalBy, anomaliesBy := ellipsoid.ClassifyDifferences(
		map[string]transform.LookupTable{sr.SensorID: sr.Difference.Lookup}, agg)

	normal, anomalies = normalBy[sr.SensorID], anomaliesBy[sr.SensorID]

	r.metrics.RecordStage(ctx, StageClassify, time.Since(stageStart))
	r.metrics.RecordClassification(ctx, len(normal), len(anomalies))

	return normal, anomalies
}
