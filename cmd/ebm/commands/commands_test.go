package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ebm/pkg/dataset"
	"github.com/Sumatoshi-tech/ebm/pkg/report"
)

// spikeDataset is one quiet sensor with a single outlier plus a sensor with
// too few readings to model.
func spikeDataset(t *testing.T) []byte {
	t.Helper()

	quiet := make([][2]float64, 0, 61)
	for i := range 60 {
		quiet = append(quiet, [2]float64{20 + 0.1*float64(i%5), 40 + 0.2*float64(i%7)})
	}

	doc := map[string][][2]float64{
		"7":      append(quiet, [2]float64{35, 90}),
		"lonely": {{21, 39}},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	return data
}

func writeDataset(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	if stdin != nil {
		cmd.SetIn(stdin)
	}

	err := cmd.Execute()

	return out.String(), err
}

func decodeReport(t *testing.T, data []byte) report.Report {
	t.Helper()

	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))

	return rep
}

func TestRun_JSONReport(t *testing.T) {
	t.Parallel()

	path := writeDataset(t, "readings.json", spikeDataset(t))

	out, err := execute(t, nil, "run", "--format", "json", "--seed", "3", "--workers", "2", path)
	require.NoError(t, err)

	rep := decodeReport(t, []byte(out))
	assert.NotEmpty(t, rep.RunID)
	require.NotNil(t, rep.Input)
	assert.Equal(t, path, rep.Input.Path)
	assert.Equal(t, 62, rep.Input.Stats.TotalRows)
	assert.Equal(t, uint64(3), rep.Parameters.Seed)
	assert.Equal(t, 2, rep.Parameters.Workers)
	assert.Nil(t, rep.Parameters.Theta)
	assert.Equal(t, 1, rep.Summary.Anomalies)
	assert.Equal(t, 60, rep.Summary.Normal)
	assert.Equal(t, []string{"lonely"}, rep.Skipped)
}

func TestRun_FlagsOverrideDefaults(t *testing.T) {
	t.Parallel()

	path := writeDataset(t, "readings.json", spikeDataset(t))

	out, err := execute(t, nil, "run", "--format", "json",
		"-a", "2", "-b", "5", "--theta", "-0.35", "--no-standardize", path)
	require.NoError(t, err)

	rep := decodeReport(t, []byte(out))
	assert.InDelta(t, 2.0, rep.Parameters.AxisA, 0)
	assert.InDelta(t, 5.0, rep.Parameters.AxisB, 0)
	require.NotNil(t, rep.Parameters.Theta)
	assert.InDelta(t, -0.35, *rep.Parameters.Theta, 1e-12)
	assert.False(t, rep.Parameters.Standardize)
}

func TestRun_ConfigFile(t *testing.T) {
	t.Parallel()

	path := writeDataset(t, "readings.json", spikeDataset(t))
	cfgPath := writeDataset(t, "ebm.yaml", []byte("output:\n  format: yaml\nregions:\n  east: [\"7\"]\n"))

	out, err := execute(t, nil, "run", "--config", cfgPath, path)
	require.NoError(t, err)

	assert.Contains(t, out, "name: east")
	assert.Contains(t, out, "name: unassigned")
}

func TestRun_Stdin(t *testing.T) {
	t.Parallel()

	csv := "20.1,40.2,1,a,2.7\n20.5,40.0,1,a,2.7\n20.2,40.7,1,a,2.7\n"

	out, err := execute(t, strings.NewReader(csv), "run", "--input-format", "csv", "--format", "json", "-")
	require.NoError(t, err)

	rep := decodeReport(t, []byte(out))
	require.Len(t, rep.Sensors, 1)
	assert.Equal(t, "a", rep.Sensors[0].ID)
	assert.Equal(t, 3, rep.Sensors[0].Readings)
}

func TestRun_WritesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeDataset(t, "readings.json", spikeDataset(t))
	reportPath := filepath.Join(dir, "out", "report.json.lz4")
	metricsPath := filepath.Join(dir, "metrics.prom")

	out, err := execute(t, nil, "run", "--format", "json",
		"--output", reportPath, "--metrics-file", metricsPath, path)
	require.NoError(t, err)
	assert.Empty(t, out)

	f, err := os.Open(reportPath)
	require.NoError(t, err)

	defer f.Close()

	data, err := io.ReadAll(lz4.NewReader(f))
	require.NoError(t, err)
	assert.Equal(t, 1, decodeReport(t, data).Summary.Anomalies)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "ebm_sensors")
}

func TestRun_TextAndPlot(t *testing.T) {
	t.Parallel()

	path := writeDataset(t, "readings.json", spikeDataset(t))

	out, err := execute(t, nil, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Regions")
	assert.Contains(t, out, "35.0000")

	out, err = execute(t, nil, "run", "--format", "html", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Region all")
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	path := writeDataset(t, "readings.json", spikeDataset(t))

	_, err := execute(t, nil, "run", "--format", "pdf", path)
	require.ErrorIs(t, err, report.ErrUnknownFormat)

	_, err = execute(t, nil, "run", "--input-format", "xml", path)
	require.ErrorIs(t, err, dataset.ErrUnknownFormat)

	_, err = execute(t, strings.NewReader("20.1,40.2,1,a,2.7\nnan,40.0,1,a,2.7\n"), "run", "--input-format", "csv", "-")
	require.ErrorIs(t, err, dataset.ErrMalformedRow)

	_, err = execute(t, nil, "run", filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = execute(t, nil, "run", "-a", "0", path)
	require.Error(t, err)

	_, err = execute(t, nil, "run")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := writeDataset(t, "ok.json", spikeDataset(t))

	out, err := execute(t, nil, "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "Dataset is valid")

	invalid := writeDataset(t, "bad.json", []byte(`{"1": [[19.9, "wet"]]}`))

	out, err = execute(t, nil, "validate", invalid)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, out, "Dataset validation failed")
	assert.Contains(t, out, "1.0.1")

	out, err = execute(t, strings.NewReader(`{"a": [[1, 2]]}`), "validate", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "(stdin)")

	_, err = execute(t, strings.NewReader("nope"), "validate", "-")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrValidationFailed)
}

func TestValidate_PrintSchema(t *testing.T) {
	t.Parallel()

	out, err := execute(t, nil, "validate", "--print-schema")
	require.NoError(t, err)
	assert.Equal(t, string(dataset.Schema), out)

	_, err = execute(t, nil, "validate", "--print-schema", "extra.json")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ebm "))
}
