package experiment

import (
	"hash/fnv"
	"math/rand"
)

// subsystemSimulate names the RNG subsystem used to draw the simulator's
// item-index stream, kept isolated from any future dataset-shuffling RNG
// consumer the way this engine isolates per-subsystem seeding.
const subsystemSimulate = "simulate"

// partitionedRNG derives deterministic, isolated *rand.Rand instances per
// named subsystem from a single master seed, so adding a new randomness
// consumer never perturbs an existing one's stream.
//
// Thread-safety: NOT thread-safe. A Sweep worker must own its own
// partitionedRNG.
type partitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

func newPartitionedRNG(seed int64) *partitionedRNG {
	return &partitionedRNG{seed: seed, subsystems: make(map[string]*rand.Rand)}
}

func (p *partitionedRNG) forSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derived := p.seed ^ fnv1a64(name)
	rng := rand.New(rand.NewSource(derived))
	p.subsystems[name] = rng
	return rng
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
