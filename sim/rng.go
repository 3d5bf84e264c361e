package sim

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical scenario
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemOrchestrator is the RNG subsystem for the orchestrator's shuffles
	// and test selection.
	SubsystemOrchestrator = "orchestrator"

	// SubsystemPopulation is the RNG subsystem handed to the population
	// initializer.
	SubsystemPopulation = "population"
)

// SubsystemPerson returns the subsystem name for person id.
func SubsystemPerson(id AgentID) string {
	return fmt.Sprintf("person_%d", id)
}

// SubsystemPlace returns the subsystem name for place id.
func SubsystemPlace(id AgentID) string {
	return fmt.Sprintf("place_%d", id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Agents are handed their *rand.Rand at
// construction time, which happens on the engine goroutine; each agent then
// owns its source exclusively.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// === Sampling helpers ===

// Uniform draws from [r.Start, r.End).
func Uniform(rng *rand.Rand, r Range) float64 {
	return r.Start + rng.Float64()*(r.End-r.Start)
}

// Discrete draws an integer uniformly from the closed interval [lo, hi].
func Discrete(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

// CoinFlip returns true with probability p.
func CoinFlip(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}

// TruncatedNormal draws from a normal distribution rejected outside r.
// Falls back to clamping after a bounded number of rejections so degenerate
// bounds still terminate.
func TruncatedNormal(rng *rand.Rand, mean, sd float64, r Range) float64 {
	for i := 0; i < 1000; i++ {
		v := mean + sd*rng.NormFloat64()
		if v >= r.Start && v <= r.End {
			return v
		}
	}
	return math.Max(r.Start, math.Min(r.End, mean))
}

// Categorical picks values[i] with probability probs[i]; the mass not covered
// by probs goes to values[0]. Returns ErrInvalidDistribution when the draw
// falls outside every band.
func Categorical[T any](rng *rand.Rand, values []T, probs []float64) (T, error) {
	var zero T
	if len(values) == 0 || len(values) != len(probs) {
		return zero, fmt.Errorf("%w: %d values, %d probabilities", ErrInvalidDistribution, len(values), len(probs))
	}
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	draw := rng.Float64()
	cumulative := 1 - sum
	if cumulative >= draw {
		return values[0], nil
	}
	for i, p := range probs {
		cumulative += p
		if draw <= cumulative {
			return values[i], nil
		}
	}
	return zero, fmt.Errorf("%w: draw %f exceeds cumulative %f", ErrInvalidDistribution, draw, cumulative)
}

// shuffleIDs permutes ids in place.
func shuffleIDs(rng *rand.Rand, ids []AgentID) {
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}
