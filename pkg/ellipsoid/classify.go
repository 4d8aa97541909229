package ellipsoid

import (
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
	"github.com/Sumatoshi-tech/ebm/pkg/transform"
)

// BoundaryTolerance absorbs the round-off of evaluating the conic at a point
// that lies on the boundary.
const BoundaryTolerance = 1e-9

// Score evaluates the conic of agg at r: negative inside, ~0 on the boundary,
// positive outside.
func Score(r reading.Reading, agg *Parameters) float64 {
	return agg.Coefficients(r.X).Evaluate(r.Y)
}

// IsAnomaly reports whether r lies outside the ellipse described by agg.
func IsAnomaly(r reading.Reading, agg *Parameters) bool {
	return Score(r, agg) > BoundaryTolerance
}

// Classification is the verdict for one reading.
type Classification struct {
	Index     int             `json:"index"     yaml:"index"`
	Reading   reading.Reading `json:"reading"   yaml:"reading"`
	Score     float64         `json:"score"     yaml:"score"`
	Anomalous bool            `json:"anomalous" yaml:"anomalous"`
}

// ClassifySeries classifies every reading of series against agg.
func ClassifySeries(series reading.Series, agg *Parameters) []Classification {
	out := make([]Classification, len(series))

	for i, r := range series {
		score := Score(r, agg)
		out[i] = Classification{
			Index:     i,
			Reading:   r,
			Score:     score,
			Anomalous: score > BoundaryTolerance,
		}
	}

	return out
}

// ClassifyDifferences recovers the source readings of every sensor through
// its lookup table and buckets them into normal and anomalous readings. Each
// source reading is classified once, in series order. A sensor may appear in
// both maps.
func ClassifyDifferences(
	lookup map[string]transform.LookupTable,
	agg *Parameters,
) (normal, anomalies map[string]reading.Series) {
	normal = make(map[string]reading.Series)
	anomalies = make(map[string]reading.Series)

	for sensorID, table := range lookup {
		for _, r := range table.Readings() {
			if IsAnomaly(r, agg) {
				anomalies[sensorID] = append(anomalies[sensorID], r)
			} else {
				normal[sensorID] = append(normal[sensorID], r)
			}
		}
	}

	return normal, anomalies
}
