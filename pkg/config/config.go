// Package config loads ebm run configuration from a YAML file, EBM_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/ebm/pkg/dataset"
	"github.com/Sumatoshi-tech/ebm/pkg/ellipsoid"
	"github.com/Sumatoshi-tech/ebm/pkg/observability"
	"github.com/Sumatoshi-tech/ebm/pkg/pipeline"
	"github.com/Sumatoshi-tech/ebm/pkg/report"
)

// Sentinel validation errors.
var (
	ErrInvalidAxes        = errors.New("model semi-axes must be positive and finite")
	ErrInvalidTheta       = errors.New("model theta must be finite")
	ErrInvalidWorkers     = errors.New("pipeline workers must not be negative")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidTimeout     = errors.New("shutdown timeout must be positive")
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Environment variables are EnvPrefix_SECTION_KEY, e.g. EBM_MODEL_A.
const EnvPrefix = "EBM"

// Config holds all configuration for one ebm run.
type Config struct {
	Model         ModelConfig         `mapstructure:"model"`
	Transform     TransformConfig     `mapstructure:"transform"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Regions       map[string][]string `mapstructure:"regions"`
	Input         InputConfig         `mapstructure:"input"`
	Output        OutputConfig        `mapstructure:"output"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ModelConfig holds the ellipse shape.
type ModelConfig struct {
	A          float64 `mapstructure:"a"`
	B          float64 `mapstructure:"b"`
	Theta      float64 `mapstructure:"theta"`
	FixedTheta bool    `mapstructure:"fixed_theta"`
}

// TransformConfig holds the preprocessing settings.
type TransformConfig struct {
	Seed        uint64 `mapstructure:"seed"`
	Standardize bool   `mapstructure:"standardize"`
}

// PipelineConfig holds the worker settings.
type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// InputConfig selects the dataset layout.
type InputConfig struct {
	Format string `mapstructure:"format"`
}

// OutputConfig selects where and how the report is written.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds tracing and metrics export settings. OTLPHeaders
// is a comma separated list of key=value pairs.
type ObservabilityConfig struct {
	OTLPEndpoint       string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders        string  `mapstructure:"otlp_headers"`
	OTLPInsecure       bool    `mapstructure:"otlp_insecure"`
	Environment        string  `mapstructure:"environment"`
	SampleRatio        float64 `mapstructure:"sample_ratio"`
	DebugTrace         bool    `mapstructure:"debug_trace"`
	MetricsFile        string  `mapstructure:"metrics_file"`
	ShutdownTimeoutSec int     `mapstructure:"shutdown_timeout_sec"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg, err := NewViper(configPath)
	if err != nil {
		return nil, err
	}

	return Decode(viperCfg)
}

// NewViper returns a viper instance with defaults, the config file and the
// environment applied. Callers may bind flags on it before Decode. An
// explicit configPath must exist; otherwise ebm.yaml is searched in ".",
// "./config" and "/etc/ebm" and its absence is not an error.
func NewViper(configPath string) (*viper.Viper, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("ebm")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/ebm")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	return viperCfg, nil
}

// Decode unmarshals and validates the configuration held by viperCfg.
func Decode(viperCfg *viper.Viper) (*Config, error) {
	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Model defaults.
	viperCfg.SetDefault("model.a", DefaultModelA)
	viperCfg.SetDefault("model.b", DefaultModelB)
	viperCfg.SetDefault("model.theta", DefaultModelTheta)
	viperCfg.SetDefault("model.fixed_theta", DefaultModelFixedTheta)

	// Transform defaults.
	viperCfg.SetDefault("transform.seed", DefaultTransformSeed)
	viperCfg.SetDefault("transform.standardize", DefaultTransformStandardize)

	viperCfg.SetDefault("pipeline.workers", DefaultPipelineWorkers)

	// Input and output defaults.
	viperCfg.SetDefault("input.format", DefaultInputFormat)
	viperCfg.SetDefault("output.format", DefaultOutputFormat)
	viperCfg.SetDefault("output.path", DefaultOutputPath)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	// Observability defaults.
	viperCfg.SetDefault("observability.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("observability.otlp_headers", DefaultOTLPHeaders)
	viperCfg.SetDefault("observability.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("observability.environment", DefaultEnvironment)
	viperCfg.SetDefault("observability.sample_ratio", DefaultSampleRatio)
	viperCfg.SetDefault("observability.debug_trace", false)
	viperCfg.SetDefault("observability.metrics_file", DefaultMetricsFile)
	viperCfg.SetDefault("observability.shutdown_timeout_sec", DefaultShutdownTimeout)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if !(config.Model.A > 0) || !(config.Model.B > 0) || math.IsInf(config.Model.A, 0) || math.IsInf(config.Model.B, 0) {
		return fmt.Errorf("%w: a=%g b=%g", ErrInvalidAxes, config.Model.A, config.Model.B)
	}

	if math.IsNaN(config.Model.Theta) || math.IsInf(config.Model.Theta, 0) {
		return fmt.Errorf("%w: theta=%g", ErrInvalidTheta, config.Model.Theta)
	}

	if config.Pipeline.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Pipeline.Workers)
	}

	_, err := dataset.ParseFormat(config.Input.Format)
	if err != nil {
		return err
	}

	_, err = report.ParseFormat(config.Output.Format)
	if err != nil {
		return err
	}

	switch strings.ToLower(config.Logging.Format) {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	obs := config.Observability
	if obs.SampleRatio < 0 || obs.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, obs.SampleRatio)
	}

	if obs.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTimeout, obs.ShutdownTimeoutSec)
	}

	return nil
}

// PipelineOptions maps the configuration onto run options. Zero workers
// means one per CPU.
func (c *Config) PipelineOptions() pipeline.Options {
	workers := c.Pipeline.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return pipeline.Options{
		Regions: c.Regions,
		Shape: ellipsoid.Shape{
			AxisA:      c.Model.A,
			AxisB:      c.Model.B,
			Theta:      c.Model.Theta,
			FixedTheta: c.Model.FixedTheta,
		},
		Seed:        c.Transform.Seed,
		Workers:     workers,
		Standardize: c.Transform.Standardize,
	}
}

// Telemetry maps the configuration onto observability settings.
func (c *Config) Telemetry(version string, mode observability.AppMode) observability.Config {
	cfg := observability.DefaultConfig()

	cfg.ServiceVersion = version
	cfg.Mode = mode
	cfg.Environment = c.Observability.Environment
	cfg.OTLPEndpoint = c.Observability.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Observability.OTLPHeaders)
	cfg.OTLPInsecure = c.Observability.OTLPInsecure
	cfg.SampleRatio = c.Observability.SampleRatio
	cfg.DebugTrace = c.Observability.DebugTrace
	cfg.MetricsFile = c.Observability.MetricsFile
	cfg.ShutdownTimeoutSec = c.Observability.ShutdownTimeoutSec
	cfg.LogLevel = observability.ParseLevel(c.Logging.Level)
	cfg.LogJSON = strings.EqualFold(c.Logging.Format, LogFormatJSON)

	return cfg
}
