// Package commands implements CLI command handlers for ebm.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/ebm/pkg/config"
	"github.com/Sumatoshi-tech/ebm/pkg/dataset"
	"github.com/Sumatoshi-tech/ebm/pkg/observability"
	"github.com/Sumatoshi-tech/ebm/pkg/pipeline"
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
	"github.com/Sumatoshi-tech/ebm/pkg/report"
	"github.com/Sumatoshi-tech/ebm/pkg/version"
)

// stdinPath names standard input as the dataset argument.
const stdinPath = "-"

// flagBindings maps run flags onto configuration keys.
var flagBindings = map[string]string{
	"format":       "output.format",
	"output":       "output.path",
	"input-format": "input.format",
	"axis-a":       "model.a",
	"axis-b":       "model.b",
	"theta":        "model.theta",
	"seed":         "transform.seed",
	"workers":      "pipeline.workers",
	"metrics-file": "observability.metrics_file",
	"log-level":    "logging.level",
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <dataset|->",
		Short: "Model every sensor of a dataset and report anomalous readings",
		Long: `Fit an ellipse to the successive differences of every sensor, aggregate
the fits per region and classify each reading against its region boundary.

The dataset may be an IBRL text file, its comma separated export, or a JSON
object mapping sensor ids to [temperature, humidity] pairs. "-" reads stdin.

Examples:
  ebm run data.txt
  ebm run --format json --output out/report.json.lz4 data.txt
  ebm run -a 2 -b 5 --theta -0.35 --seed 42 data.csv
  ebm run --format plot --output regions.html data.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := loadRunConfig(cmd, cfgPath)
			if err != nil {
				return err
			}

			return runModel(cmd.Context(), cfg, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.String("format", config.DefaultOutputFormat, "output format: text, json, yaml or plot")
	flags.StringP("output", "o", config.DefaultOutputPath, "write the report to a file instead of stdout (\".lz4\" compresses)")
	flags.String("input-format", config.DefaultInputFormat, "dataset layout: auto, ibrl, csv or json")
	flags.Float64P("axis-a", "a", config.DefaultModelA, "semi-axis along the rotated x direction")
	flags.Float64P("axis-b", "b", config.DefaultModelB, "semi-axis along the rotated y direction")
	flags.Float64("theta", config.DefaultModelTheta, "fixed orientation in radians; estimated per sensor when unset")
	flags.Uint64("seed", config.DefaultTransformSeed, "seed of the per-sensor shuffle")
	flags.Int("workers", config.DefaultPipelineWorkers, "concurrent sensor workers (0 = one per CPU)")
	flags.Bool("no-standardize", false, "model raw readings instead of z-scores")
	flags.String("metrics-file", config.DefaultMetricsFile, "write Prometheus metrics of the run to this file")
	flags.String("log-level", config.DefaultLoggingLevel, "log level: debug, info, warn or error")
	flags.Bool("log-json", false, "log as JSON")

	return cmd
}

// loadRunConfig layers changed flags over the config file and environment.
func loadRunConfig(cmd *cobra.Command, cfgPath string) (*config.Config, error) {
	viperCfg, err := config.NewViper(cfgPath)
	if err != nil {
		return nil, err
	}

	err = bindRunFlags(cmd, viperCfg)
	if err != nil {
		return nil, err
	}

	return config.Decode(viperCfg)
}

func bindRunFlags(cmd *cobra.Command, viperCfg *viper.Viper) error {
	flags := cmd.Flags()

	for name, key := range flagBindings {
		err := viperCfg.BindPFlag(key, flags.Lookup(name))
		if err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if flags.Changed("theta") {
		viperCfg.Set("model.fixed_theta", true)
	}

	if flags.Changed("no-standardize") {
		noStandardize, err := flags.GetBool("no-standardize")
		if err != nil {
			return err
		}

		viperCfg.Set("transform.standardize", !noStandardize)
	}

	if flags.Changed("log-json") {
		logJSON, err := flags.GetBool("log-json")
		if err != nil {
			return err
		}

		format := config.LogFormatText
		if logJSON {
			format = config.LogFormatJSON
		}

		viperCfg.Set("logging.format", format)
	}

	return nil
}

func runModel(ctx context.Context, cfg *config.Config, path string, stdin io.Reader, stdout io.Writer) (err error) {
	providers, err := observability.Init(cfg.Telemetry(version.Version, observability.ModeCLI))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		err = errors.Join(err, providers.Shutdown(context.WithoutCancel(ctx)))
	}()

	logger := providers.Logger

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	set, stats, err := loadDataset(cfg.Input.Format, path, stdin)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "dataset loaded",
		"path", path, "sensors", len(set), "readings", set.Len(), "rows", stats.TotalRows, "incomplete_rows", stats.IncompleteRows)

	result, err := pipeline.New(cfg.PipelineOptions(), logger, providers.Tracer, metrics).Run(ctx, set)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	return writeReport(cfg.Output.Path, stdout, format, result, &report.Input{Path: path, Stats: stats})
}

func loadDataset(name, path string, stdin io.Reader) (reading.SensorSet, dataset.Stats, error) {
	format, err := dataset.ParseFormat(name)
	if err != nil {
		return nil, dataset.Stats{}, err
	}

	if path == stdinPath {
		set, stats, readErr := dataset.Read(stdin, format)
		if readErr != nil {
			return nil, stats, fmt.Errorf("stdin: %w", readErr)
		}

		return set, stats, nil
	}

	return dataset.Load(path, format)
}

func writeReport(
	outputPath string, stdout io.Writer, format report.Format, result *pipeline.Result, input *report.Input,
) (err error) {
	if outputPath == "" {
		return report.Write(stdout, format, result, input)
	}

	w, err := report.Create(outputPath)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, w.Close())
	}()

	return report.Write(w, format, result, input)
}
