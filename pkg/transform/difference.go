package transform

import "github.com/Sumatoshi-tech/ebm/pkg/reading"

// SourcePair references the two readings that produced one difference:
// Differences[Index] == To - From.
type SourcePair struct {
	Index int             `json:"index" yaml:"index"`
	From  reading.Reading `json:"from"  yaml:"from"`
	To    reading.Reading `json:"to"    yaml:"to"`
}

// LookupTable maps each difference index back to its source readings.
type LookupTable []SourcePair

// Readings returns every source reading referenced by the table exactly once,
// in series order: the From side of each pair plus the To side of the last.
func (lt LookupTable) Readings() reading.Series {
	if len(lt) == 0 {
		return nil
	}

	out := make(reading.Series, 0, len(lt)+1)

	for _, pair := range lt {
		out = append(out, pair.From)
	}

	return append(out, lt[len(lt)-1].To)
}

// Difference is the first-order discrete derivative of a series together
// with its lookup table.
type Difference struct {
	Differences reading.Series `json:"differences" yaml:"differences"`
	Lookup      LookupTable    `json:"lookup"      yaml:"lookup"`
}

// SuccessiveDifference returns the n-1 differences series[i+1]-series[i] of a
// series with n readings. Series shorter than two readings yield an empty
// result; callers treat that as a skipped sensor.
func SuccessiveDifference(series reading.Series) Difference {
	if len(series) < 2 {
		return Difference{}
	}

	n := len(series) - 1
	diffs := make(reading.Series, n)
	lookup := make(LookupTable, n)

	for i := range n {
		from, to := series[i], series[i+1]
		diffs[i] = to.Sub(from)
		lookup[i] = SourcePair{Index: i, From: from, To: to}
	}

	return Difference{Differences: diffs, Lookup: lookup}
}

// Integrate rebuilds a series from its first reading and its successive
// differences. It is the inverse of SuccessiveDifference.
func Integrate(first reading.Reading, diffs reading.Series) reading.Series {
	out := make(reading.Series, 0, len(diffs)+1)
	out = append(out, first)

	current := first

	for _, d := range diffs {
		current = current.Add(d)
		out = append(out, current)
	}

	return out
}
