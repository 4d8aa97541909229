package config

import "github.com/Sumatoshi-tech/ebm/pkg/pipeline"

// Model defaults.
const (
	DefaultModelA          = pipeline.DefaultAxisA
	DefaultModelB          = pipeline.DefaultAxisB
	DefaultModelTheta      = 0.0
	DefaultModelFixedTheta = false
)

// Transform defaults.
const (
	DefaultTransformSeed        uint64 = 0
	DefaultTransformStandardize        = true
)

// DefaultPipelineWorkers is the worker count; zero means one per CPU.
const DefaultPipelineWorkers = 0

// Input and output defaults.
const (
	DefaultInputFormat  = "auto"
	DefaultOutputFormat = "text"
	DefaultOutputPath   = ""
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = LogFormatText
)

// Observability defaults.
const (
	DefaultOTLPEndpoint    = ""
	DefaultOTLPHeaders     = ""
	DefaultOTLPInsecure    = false
	DefaultEnvironment     = ""
	DefaultSampleRatio     = 0.0
	DefaultMetricsFile     = ""
	DefaultShutdownTimeout = 5
)
