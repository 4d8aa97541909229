package dataset

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/ebm/pkg/reading"
)

// Schema is the JSON schema of the JSON dataset layout.
//
//go:embed schema.json
var Schema []byte

// ValidationError is one schema violation.
type ValidationError struct {
	Field       string
	Description string
	Value       any
}

func (e ValidationError) String() string {
	return e.Field + ": " + e.Description
}

// Validation is the outcome of checking a document against Schema.
type Validation struct {
	Errors []ValidationError
}

// Valid reports whether the document matched the schema.
func (v *Validation) Valid() bool {
	return len(v.Errors) == 0
}

// Validate checks a JSON document against Schema. The error is non-nil only
// when data is not JSON at all.
func Validate(data []byte) (*Validation, error) {
	var doc any

	err := json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(Schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate dataset: %w", err)
	}

	validation := &Validation{}

	for _, re := range result.Errors() {
		validation.Errors = append(validation.Errors, ValidationError{
			Field:       re.Field(),
			Description: re.Description(),
			Value:       re.Value(),
		})
	}

	return validation, nil
}

// ReadJSON reads a JSON dataset: an object mapping sensor ids to arrays of
// [temperature, humidity] pairs. The document is validated first.
func ReadJSON(r io.Reader) (reading.SensorSet, Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read dataset: %w", err)
	}

	validation, err := Validate(data)
	if err != nil {
		return nil, Stats{}, err
	}

	if !validation.Valid() {
		return nil, Stats{}, fmt.Errorf("%w: %s (%d errors)",
			ErrInvalidDataset, validation.Errors[0], len(validation.Errors))
	}

	var raw map[string][][2]float64

	err = json.Unmarshal(data, &raw)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("decode dataset: %w", err)
	}

	set := make(reading.SensorSet, len(raw))

	var stats Stats

	for id, pairs := range raw {
		series := make(reading.Series, len(pairs))
		for i, p := range pairs {
			series[i] = reading.Reading{X: p[0], Y: p[1]}
		}

		set[id] = series
		stats.TotalRows += len(pairs)
	}

	return set, stats, nil
}
