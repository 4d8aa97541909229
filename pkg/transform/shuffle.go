// Package transform prepares sensor series for ellipsoid modeling: it
// randomizes reading order, takes successive differences with a lookup table
// back to the source readings, and standardizes each axis.
package transform

import (
	"hash/fnv"
	"math/rand/v2"

	"github.com/Sumatoshi-tech/ebm/pkg/reading"
)

// Shuffle returns a pseudo-random permutation of series. The permutation is
// fully determined by seed; series itself is left untouched.
func Shuffle(series reading.Series, seed uint64) reading.Series {
	out := series.Clone()

	rng := rand.New(rand.NewPCG(seed, seed^pcgStream)) //nolint:gosec // reproducible ordering, not a secret.
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})

	return out
}

// pcgStream decorrelates the second PCG word from the seed.
const pcgStream = 0x9e3779b97f4a7c15

// SensorSeed derives the shuffle seed of one sensor from the run seed, so
// that every sensor gets an independent but reproducible permutation no
// matter in which order workers pick sensors up.
func SensorSeed(runSeed uint64, sensorID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sensorID))

	return runSeed ^ h.Sum64()
}
