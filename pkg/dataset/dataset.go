// Package dataset loads sensor readings from the IBRL text layout, its comma
// separated export, and a JSON document keyed by sensor id.
package dataset

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/ebm/pkg/reading"
)

// Format names an input layout.
type Format string

// Supported input layouts.
const (
	FormatAuto Format = "auto"
	FormatIBRL Format = "ibrl"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Sentinel errors.
var (
	ErrMalformedRow   = errors.New("malformed row")
	ErrUnknownFormat  = errors.New("unknown input format")
	ErrInvalidDataset = errors.New("dataset does not match schema")
)

// Column layout of the two text formats.
const (
	ibrlTokens      = 8
	ibrlSensor      = 3
	ibrlTemperature = 4
	ibrlHumidity    = 5

	csvTokens      = 5
	csvTemperature = 0
	csvHumidity    = 1
	csvSensor      = 3
)

// sniffBytes is how much of the input auto-detection looks at.
const sniffBytes = 512

// Stats counts the rows seen while loading.
type Stats struct {
	TotalRows      int `json:"total_rows"      yaml:"total_rows"`
	IncompleteRows int `json:"incomplete_rows" yaml:"incomplete_rows"`
}

// ParseFormat maps a flag value to a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatAuto, FormatIBRL, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Load reads the dataset at path. FormatAuto picks the layout from the file
// extension, falling back to the content.
func Load(path string, format Format) (reading.SensorSet, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	if format == FormatAuto {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			format = FormatJSON
		case ".csv":
			format = FormatCSV
		}
	}

	set, stats, err := Read(f, format)
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}

	return set, stats, nil
}

// Read parses r in the given layout.
func Read(r io.Reader, format Format) (reading.SensorSet, Stats, error) {
	br := bufio.NewReader(r)

	if format == FormatAuto {
		format = sniff(br)
	}

	switch format {
	case FormatIBRL:
		return readRows(br, strings.Fields, ibrlTokens, ibrlSensor, ibrlTemperature, ibrlHumidity)
	case FormatCSV:
		return readRows(br, splitComma, csvTokens, csvSensor, csvTemperature, csvHumidity)
	case FormatJSON:
		return ReadJSON(br)
	case FormatAuto:
	}

	return nil, Stats{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// sniff guesses the layout from the start of the input: a JSON object, a
// comma separated row, or whitespace separated IBRL rows.
func sniff(br *bufio.Reader) Format {
	head, _ := br.Peek(sniffBytes) //nolint:errcheck // a short read still yields a usable prefix.

	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}

	firstLine, _, _ := bytes.Cut(trimmed, []byte("\n"))
	if bytes.Contains(firstLine, []byte(",")) {
		return FormatCSV
	}

	return FormatIBRL
}

func splitComma(line string) []string {
	tokens := strings.Split(line, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}

	return tokens
}

// readRows parses one reading per line. Rows whose token count differs from
// want are counted as incomplete and skipped; rows with the right shape but
// unparsable numbers are an error.
func readRows(
	r io.Reader, split func(string) []string, want, sensorCol, tempCol, humidityCol int,
) (reading.SensorSet, Stats, error) {
	set := make(reading.SensorSet)

	var stats Stats

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		stats.TotalRows++

		line := strings.TrimSpace(scanner.Text())

		tokens := split(line)
		if line == "" || len(tokens) != want {
			stats.IncompleteRows++

			continue
		}

		temperature, err := strconv.ParseFloat(tokens[tempCol], 64)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: line %d: temperature %q", ErrMalformedRow, stats.TotalRows, tokens[tempCol])
		}

		humidity, err := strconv.ParseFloat(tokens[humidityCol], 64)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: line %d: humidity %q", ErrMalformedRow, stats.TotalRows, tokens[humidityCol])
		}

		if tokens[sensorCol] == "" {
			return nil, stats, fmt.Errorf("%w: line %d: empty sensor id", ErrMalformedRow, stats.TotalRows)
		}

		r := reading.Reading{X: temperature, Y: humidity}
		if !r.Finite() {
			return nil, stats, fmt.Errorf("%w: line %d: %w", ErrMalformedRow, stats.TotalRows, reading.ErrNonFinite)
		}

		set.Append(tokens[sensorCol], r)
	}

	err := scanner.Err()
	if err != nil {
		return nil, stats, fmt.Errorf("scan rows: %w", err)
	}

	return set, stats, nil
}
