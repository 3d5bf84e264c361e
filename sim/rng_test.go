package sim

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

// === PartitionedRNG Tests ===

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// BDD: Same key+name produces same sequence
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))

	for i := 0; i < 3; i++ {
		a := rng1.ForSubsystem(SubsystemOrchestrator).Float64()
		b := rng2.ForSubsystem(SubsystemOrchestrator).Float64()
		if a != b {
			t.Errorf("Value %d: got %v and %v, want identical", i, a, b)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// BDD: Drawing from one person's stream doesn't affect another's
	rngA := NewPartitionedRNG(NewSimulationKey(42))
	rngB := NewPartitionedRNG(NewSimulationKey(42))

	for i := 0; i < 10; i++ {
		rngA.ForSubsystem(SubsystemPerson(1)).Float64()
	}
	for i := 0; i < 5; i++ {
		rngB.ForSubsystem(SubsystemPerson(2)).Float64()
	}

	aSecondFirst := rngA.ForSubsystem(SubsystemPerson(2)).Float64()
	bSecondSixth := rngB.ForSubsystem(SubsystemPerson(2)).Float64()

	fresh := NewPartitionedRNG(NewSimulationKey(42))
	expectedFirst := fresh.ForSubsystem(SubsystemPerson(2)).Float64()

	if aSecondFirst != expectedFirst {
		t.Errorf("person_2 first value = %v, want %v (isolation broken)", aSecondFirst, expectedFirst)
	}
	if bSecondSixth == expectedFirst {
		t.Error("person_2 6th value equals 1st value - unexpected")
	}
}

func TestPartitionedRNG_DerivationFormula(t *testing.T) {
	// BDD: stream seed is masterSeed XOR fnv1a64(name)
	seed := int64(7)
	rng := NewPartitionedRNG(NewSimulationKey(seed)).ForSubsystem(SubsystemPopulation)
	direct := rand.New(rand.NewSource(seed ^ fnv1a64(SubsystemPopulation)))

	for i := 0; i < 10; i++ {
		assert.Equal(t, direct.Int63(), rng.Int63(), "value %d", i)
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	// BDD: Same name returns same *rand.Rand instance
	rng := NewPartitionedRNG(NewSimulationKey(42))

	rng1 := rng.ForSubsystem(SubsystemPlace(5))
	rng2 := rng.ForSubsystem(SubsystemPlace(5))

	if rng1 != rng2 {
		t.Error("ForSubsystem returned different instances for same name")
	}
}

func TestPartitionedRNG_Key(t *testing.T) {
	seed := int64(12345)
	rng := NewPartitionedRNG(NewSimulationKey(seed))

	if rng.Key() != SimulationKey(seed) {
		t.Errorf("Key() = %v, want %v", rng.Key(), seed)
	}
}

func TestPartitionedRNG_NegativeSeed(t *testing.T) {
	// BDD: MinInt64 seed works correctly
	rng := NewPartitionedRNG(NewSimulationKey(math.MinInt64))

	orch := rng.ForSubsystem(SubsystemOrchestrator)
	require.NotNil(t, orch)

	val := orch.Float64()
	if val < 0 || val >= 1 {
		t.Errorf("Float64() returned %v, want [0, 1)", val)
	}
}

func TestPartitionedRNG_LazyInitialization(t *testing.T) {
	// BDD: Subsystems map is empty until ForSubsystem is called
	rng := NewPartitionedRNG(NewSimulationKey(42))

	if len(rng.subsystems) != 0 {
		t.Errorf("New PartitionedRNG has %d subsystems, want 0", len(rng.subsystems))
	}

	rng.ForSubsystem(SubsystemOrchestrator)

	if len(rng.subsystems) != 1 {
		t.Errorf("After one ForSubsystem call, have %d subsystems, want 1", len(rng.subsystems))
	}
}

// === fnv1a64 Tests ===

func TestFnv1a64_Collision(t *testing.T) {
	// Different subsystem names should produce different hashes (spot check)
	names := []string{
		SubsystemOrchestrator,
		SubsystemPopulation,
		SubsystemPerson(1),
		SubsystemPerson(10),
		SubsystemPlace(1),
		SubsystemPlace(100),
		"",
	}

	hashes := make(map[int64]string)
	for _, name := range names {
		h := fnv1a64(name)
		if existing, ok := hashes[h]; ok {
			t.Errorf("Hash collision: %q and %q both hash to %d", name, existing, h)
		}
		hashes[h] = name
	}
}

func TestSubsystemNames(t *testing.T) {
	assert.Equal(t, "person_3", SubsystemPerson(3))
	assert.Equal(t, "place_42", SubsystemPlace(42))
}

// === Sampling helper Tests ===

func TestDiscrete_StaysInClosedInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		v := Discrete(rng, 2, 4)
		require.GreaterOrEqual(t, v, 2)
		require.LessOrEqual(t, v, 4)
		seen[v] = true
	}
	// Both endpoints are reachable
	assert.True(t, seen[2])
	assert.True(t, seen[4])
}

func TestDiscrete_DegenerateInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, 5, Discrete(rng, 5, 5))
	assert.Equal(t, 5, Discrete(rng, 5, 3))
}

func TestUniform_WithinRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		v := Uniform(rng, Range{Start: 0.25, End: 0.75})
		require.GreaterOrEqual(t, v, 0.25)
		require.Less(t, v, 0.75)
	}
	assert.Equal(t, 1.0, Uniform(rng, Range{Start: 1, End: 1}))
}

func TestTruncatedNormal_RespectsBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		v := TruncatedNormal(rng, 45, 20, Range{Start: 18, End: 100})
		require.GreaterOrEqual(t, v, 18.0)
		require.LessOrEqual(t, v, 100.0)
	}
}

func TestTruncatedNormal_ImpossibleBoundsClampMean(t *testing.T) {
	// GIVEN a range far outside the distribution's support
	rng := rand.New(rand.NewSource(3))

	// WHEN sampling with a tiny deviation
	v := TruncatedNormal(rng, 0, 1e-9, Range{Start: 10, End: 20})

	// THEN the mean is clamped into the range
	assert.Equal(t, 10.0, v)
}

func TestCategorical(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		probs  []float64
		want   string
	}{
		{"all mass on first by remainder", []string{"general", "student"}, []float64{0, 0}, "general"},
		{"all mass on second", []string{"general", "student"}, []float64{0, 1}, "student"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(9))
			for i := 0; i < 50; i++ {
				got, err := Categorical(rng, tt.values, tt.probs)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCategorical_MismatchedLengths(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	_, err := Categorical(rng, []int{1, 2}, []float64{0.5})
	assert.True(t, errors.Is(err, ErrInvalidDistribution))

	_, err = Categorical[int](rng, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidDistribution))
}

// === Benchmark ===

func BenchmarkPartitionedRNG_ForSubsystem_CacheHit(b *testing.B) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	rng.ForSubsystem(SubsystemOrchestrator)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rng.ForSubsystem(SubsystemOrchestrator)
	}
}

func BenchmarkPartitionedRNG_ForSubsystem_CacheMiss(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rng := NewPartitionedRNG(NewSimulationKey(42))
		rng.ForSubsystem(SubsystemPerson(AgentID(i)))
	}
}
