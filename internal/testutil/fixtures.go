// Package testutil provides shared test fixtures used across this
// module's packages: a small synthetic (entropy, reward) dataset, a
// synthetic logit generator for in-memory Dataset fixtures, and a
// deterministic random index source, mirroring this engine's reference
// golden-dataset fixture infrastructure.
package testutil

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// SyntheticEntropyReward generates n (entropy, reward) pairs with a mild
// linear trend plus Gaussian noise, deterministic for a given seed.
func SyntheticEntropyReward(n int, seed int64) (entropy, reward []float64) {
	src := rand.NewSource(seed)
	rng := rand.New(src)
	noise := distuv.Normal{Mu: 0, Sigma: 0.1, Src: src}

	entropy = make([]float64, n)
	reward = make([]float64, n)
	for i := range entropy {
		entropy[i] = rng.Float64() * 3
		reward[i] = entropy[i]*0.5 - 0.75 + noise.Rand()
	}
	return entropy, reward
}

// SyntheticLogits generates n rows of k-dimensional Gaussian logits,
// deterministic for a given seed, for in-memory Dataset fixtures.
func SyntheticLogits(n, k int, seed int64) [][]float64 {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, k)
		for j := range row {
			row[j] = dist.Rand()
		}
		out[i] = row
	}
	return out
}

// CyclicSource is a RandSource-compatible stub that deterministically
// cycles through a fixed sequence of indices modulo n, for tests that
// need exact reproducibility without depending on math/rand's internals.
type CyclicSource struct {
	seq []int
	pos int
}

// NewCyclicSource builds a CyclicSource from seq. Intn(n) returns
// seq[pos] % n, advancing pos and wrapping around seq.
func NewCyclicSource(seq []int) *CyclicSource {
	return &CyclicSource{seq: seq}
}

// Intn returns the next value in the cycle, reduced modulo n.
func (c *CyclicSource) Intn(n int) int {
	v := c.seq[c.pos%len(c.seq)] % n
	c.pos++
	return v
}
