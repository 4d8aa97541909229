package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ebm/pkg/dataset"
	"github.com/Sumatoshi-tech/ebm/pkg/pipeline"
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
	"github.com/Sumatoshi-tech/ebm/pkg/report"
)

func sensors() reading.SensorSet {
	spike := make(reading.Series, 0, 61)
	for i := range 60 {
		spike = append(spike, reading.Reading{X: 20 + 0.1*float64(i%5), Y: 40 + 0.2*float64(i%7)})
	}

	spike = append(spike, reading.Reading{X: 35, Y: 90})

	return reading.SensorSet{
		"7":      spike,
		"flat":   {{X: 20, Y: 40}, {X: 20, Y: 40}, {X: 20, Y: 40}},
		"lonely": {{X: 21, Y: 39}},
	}
}

func runResult(t *testing.T, mutate func(*pipeline.Options)) *pipeline.Result {
	t.Helper()

	opts := pipeline.DefaultOptions()
	opts.Seed = 11
	opts.Workers = 2

	if mutate != nil {
		mutate(&opts)
	}

	result, err := pipeline.New(opts, nil, nil, nil).Run(context.Background(), sensors())
	require.NoError(t, err)

	return result
}

func TestBuild(t *testing.T) {
	t.Parallel()

	result := runResult(t, nil)
	input := &report.Input{Path: "data.txt", Stats: dataset.Stats{TotalRows: 70, IncompleteRows: 5}}

	rep := report.Build(result, input)

	assert.Equal(t, result.RunID, rep.RunID)
	assert.Same(t, input, rep.Input)
	assert.Nil(t, rep.Parameters.Theta)
	assert.Equal(t, uint64(11), rep.Parameters.Seed)
	assert.True(t, rep.Parameters.Standardize)

	assert.Equal(t, report.Summary{
		Sensors: 3, Modeled: 1, Skipped: 1, Failed: 1, Regions: 1, Normal: 60, Anomalies: 1,
	}, rep.Summary)

	require.Len(t, rep.Regions, 1)
	region := rep.Regions[0]
	assert.Equal(t, pipeline.DefaultRegion, region.Name)
	assert.Equal(t, []string{"7", "flat", "lonely"}, region.Sensors)
	assert.Equal(t, 1, region.Modeled)
	assert.Empty(t, region.Error)
	assert.InDelta(t, result.Sensors["7"].Ellipsoid.Theta, region.Theta, 1e-12)
	assert.InDelta(t, region.Theta, region.ThetaMin, 1e-12)
	assert.InDelta(t, region.Theta, region.ThetaMax, 1e-12)
	assert.InDelta(t, region.Theta, region.ThetaMedian, 1e-12)

	require.Len(t, rep.Sensors, 1)
	sensor := rep.Sensors[0]
	assert.Equal(t, "7", sensor.ID)
	assert.Equal(t, 61, sensor.Readings)
	assert.Equal(t, 60, sensor.Normal)
	require.Len(t, sensor.Anomalies, 1)

	spike := sensor.Anomalies[0]
	assert.InDelta(t, 35, spike.Temperature, 1e-9)
	assert.InDelta(t, 90, spike.Humidity, 1e-9)
	assert.Positive(t, spike.Score)
	assert.Greater(t, spike.Distance, 3.0)

	assert.Equal(t, []string{"lonely"}, rep.Skipped)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "flat", rep.Failures[0].Sensor)
	assert.Equal(t, pipeline.StageStandardize, rep.Failures[0].Stage)
}

func TestBuild_FixedTheta(t *testing.T) {
	t.Parallel()

	result := runResult(t, func(o *pipeline.Options) {
		o.Shape.Theta = 0.5
		o.Shape.FixedTheta = true
	})

	rep := report.Build(result, nil)

	require.NotNil(t, rep.Parameters.Theta)
	assert.InDelta(t, 0.5, *rep.Parameters.Theta, 1e-12)
	assert.Nil(t, rep.Input)
	assert.InDelta(t, 0.5, rep.Sensors[0].Theta, 1e-12)
}

func TestBuild_FailedRegion(t *testing.T) {
	t.Parallel()

	result := runResult(t, func(o *pipeline.Options) {
		o.Regions = map[string][]string{"north": {"flat"}, "south": {"7", "lonely"}}
	})

	rep := report.Build(result, nil)

	require.Len(t, rep.Regions, 2)
	assert.Equal(t, "north", rep.Regions[0].Name)
	assert.NotEmpty(t, rep.Regions[0].Error)
	assert.Zero(t, rep.Regions[0].Modeled)
	assert.Equal(t, "south", rep.Regions[1].Name)
	assert.Empty(t, rep.Regions[1].Error)
	assert.Equal(t, "south", rep.Sensors[0].Region)
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rep := report.Build(runResult(t, nil), nil)

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf, rep))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, rep.RunID, decoded["run_id"])

	summary, ok := decoded["summary"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 1, summary["anomalies"], 0)
	assert.NotContains(t, decoded, "input")
}

func TestWriteYAML(t *testing.T) {
	t.Parallel()

	rep := report.Build(runResult(t, nil), nil)

	var buf bytes.Buffer
	require.NoError(t, report.WriteYAML(&buf, rep))

	out := buf.String()
	assert.Contains(t, out, "run_id: "+rep.RunID)
	assert.Contains(t, out, "anomalies: 1")
	assert.Contains(t, out, "stage: standardize")
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	input := &report.Input{Path: "data.txt", Stats: dataset.Stats{TotalRows: 12345, IncompleteRows: 6}}
	rep := report.Build(runResult(t, nil), input)

	var buf bytes.Buffer
	require.NoError(t, report.WriteText(&buf, rep))

	out := buf.String()
	assert.Contains(t, out, "12,345 rows")
	assert.Contains(t, out, "theta=estimated")
	assert.Contains(t, out, "1 anomalous")
	assert.Contains(t, out, "35.0000")
	assert.Contains(t, out, "90.0000")
	assert.Contains(t, out, "flat")
	assert.Contains(t, out, "skipped (fewer than two readings): lonely")
}

func TestWritePlot(t *testing.T) {
	t.Parallel()

	result := runResult(t, nil)

	var buf bytes.Buffer
	require.NoError(t, report.WritePlot(&buf, result))

	out := buf.String()
	assert.Contains(t, out, "EBM run "+result.RunID)
	assert.Contains(t, out, "Region all")
	assert.Contains(t, out, "boundary (upper)")
	assert.Contains(t, out, "anomaly")
}

func TestWrite(t *testing.T) {
	t.Parallel()

	result := runResult(t, nil)

	for _, format := range []report.Format{report.FormatText, report.FormatJSON, report.FormatYAML, report.FormatPlot} {
		var buf bytes.Buffer
		require.NoError(t, report.Write(&buf, format, result, nil), format)
		assert.NotZero(t, buf.Len(), format)
	}

	err := report.Write(io.Discard, report.Format("pdf"), result, nil)
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]report.Format{
		"":      report.FormatText,
		"txt":   report.FormatText,
		"JSON":  report.FormatJSON,
		"yml":   report.FormatYAML,
		"yaml":  report.FormatYAML,
		"html":  report.FormatPlot,
		" plot": report.FormatPlot,
	} {
		got, err := report.ParseFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := report.ParseFormat("pdf")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestCreate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	payload := []byte(`{"run_id": "abc"}` + "\n")

	plain := filepath.Join(dir, "nested", "report.json")
	w, err := report.Create(plain)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	compressed := filepath.Join(dir, "report.json.lz4")
	w, err = report.Create(compressed)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := os.Open(compressed)
	require.NoError(t, err)

	defer f.Close()

	got, err = io.ReadAll(lz4.NewReader(f))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
