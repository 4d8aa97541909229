package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/ebm/pkg/pipeline"
)

// Format names an output layout.
type Format string

// Supported output layouts.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatPlot Format = "plot"
)

// ErrUnknownFormat is returned for an unsupported output layout.
var ErrUnknownFormat = errors.New("unknown output format")

const (
	jsonIndent = "  "
	yamlIndent = 2

	compressedExt = ".lz4"
	outputPerm    = 0o644
)

// ParseFormat maps a flag value to a Format. "yml" and "html" are accepted as
// aliases.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatText, FormatJSON, FormatYAML, FormatPlot:
		return f, nil
	case "", "txt":
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	case "html":
		return FormatPlot, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Write renders result to w. The plot layout is drawn from the full result,
// every other layout from its Report.
func Write(w io.Writer, format Format, result *pipeline.Result, input *Input) error {
	switch format {
	case FormatPlot:
		return WritePlot(w, result)
	case FormatJSON:
		return WriteJSON(w, Build(result, input))
	case FormatYAML:
		return WriteYAML(w, Build(result, input))
	case FormatText:
		return WriteText(w, Build(result, input))
	}

	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteJSON writes rep as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", jsonIndent)

	err := enc.Encode(rep)
	if err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

// WriteYAML writes rep as YAML.
func WriteYAML(w io.Writer, rep *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(rep)
	if err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("flush yaml report: %w", err)
	}

	return nil
}

// Create opens path for writing a report, creating parent directories. Paths
// ending in ".lz4" are written through an lz4 frame. Closing the returned
// writer flushes the frame and closes the file.
func Create(path string) (io.WriteCloser, error) {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, outputPerm)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	if !strings.EqualFold(filepath.Ext(path), compressedExt) {
		return f, nil
	}

	return &compressedFile{Writer: lz4.NewWriter(f), file: f}, nil
}

type compressedFile struct {
	*lz4.Writer

	file *os.File
}

func (c *compressedFile) Close() error {
	err := c.Writer.Close()
	closeErr := c.file.Close()

	if err != nil {
		return fmt.Errorf("flush lz4 frame: %w", err)
	}

	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}

	return nil
}
