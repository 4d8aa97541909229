package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/ebm/pkg/config"
	"github.com/Sumatoshi-tech/ebm/pkg/dataset"
	"github.com/Sumatoshi-tech/ebm/pkg/observability"
	"github.com/Sumatoshi-tech/ebm/pkg/version"
)

// ErrValidationFailed is returned when a dataset does not match the schema.
var ErrValidationFailed = errors.New("dataset validation failed")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var colorize, nocolor, printSchema bool

	cmd := &cobra.Command{
		Use:   "validate <file.json|->",
		Short: "Validate a JSON dataset against the dataset schema",
		Long: `Validate a JSON dataset: an object mapping sensor ids to arrays of
[temperature, humidity] pairs.

Examples:
  ebm validate readings.json
  ebm validate - < readings.json
  ebm validate --print-schema`,
		Args: func(cmd *cobra.Command, args []string) error {
			if printSchema {
				return cobra.NoArgs(cmd, args)
			}

			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if printSchema {
				_, err := cmd.OutOrStdout().Write(dataset.Schema)

				return err
			}

			if nocolor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			} else if colorize {
				color.NoColor = false //nolint:reassign // intentional override of library global
			}

			cfgPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			return runValidate(cmd.Context(), cfg, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVar(&printSchema, "print-schema", false, "print the dataset schema and exit")

	return cmd
}

func runValidate(ctx context.Context, cfg *config.Config, path string, stdin io.Reader, out io.Writer) (err error) {
	providers, err := observability.Init(cfg.Telemetry(version.Version, observability.ModeValidate))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		err = errors.Join(err, providers.Shutdown(context.WithoutCancel(ctx)))
	}()

	ctx, span := providers.Tracer.Start(ctx, "ebm.validate")
	defer span.End()

	data, label, err := readInput(path, stdin)
	if err != nil {
		return err
	}

	validation, err := dataset.Validate(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid json")

		return fmt.Errorf("%s: %w", label, err)
	}

	span.SetAttributes(attribute.Int("ebm.validation.errors", len(validation.Errors)))
	providers.Logger.DebugContext(ctx, "dataset validated", "input", label, "errors", len(validation.Errors))

	if validation.Valid() {
		color.New(color.FgGreen).Fprintf(out, "Dataset is valid (%s)\n", label)

		return nil
	}

	color.New(color.FgRed).Fprintf(out, "Dataset validation failed (%s)\n", label)
	color.New(color.FgYellow).Fprintf(out, "  Errors: %d\n", len(validation.Errors))

	fmt.Fprintf(out, "\nErrors:\n")

	for _, verr := range validation.Errors {
		if verr.Value != nil {
			color.New(color.FgRed).Fprintf(out, "  - %s (got %v)\n", verr, verr.Value)
		} else {
			color.New(color.FgRed).Fprintf(out, "  - %s\n", verr)
		}
	}

	span.SetStatus(codes.Error, "schema mismatch")

	return fmt.Errorf("%w: %s", ErrValidationFailed, label)
}

func readInput(path string, stdin io.Reader) ([]byte, string, error) {
	if path == stdinPath {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}

		return data, "stdin", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read dataset: %w", err)
	}

	return data, path, nil
}
