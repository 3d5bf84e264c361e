package population

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivid-sim/vivid-sim/sim"
	"github.com/vivid-sim/vivid-sim/sim/internal/testutil"
)

func smallConfig(t *testing.T) *sim.Config {
	t.Helper()
	cfg, err := sim.ParseConfig(testutil.LoadScenario(t, "small"))
	require.NoError(t, err)
	return cfg
}

func personIDs(n int) []sim.AgentID {
	ids := make([]sim.AgentID, n)
	for i := range ids {
		ids[i] = sim.AgentID(i + 1)
	}
	return ids
}

func TestInitialize_PlacesAreContiguousFromFirstPlace(t *testing.T) {
	// GIVEN the small campus scenario
	cfg := smallConfig(t)
	first := sim.AgentID(cfg.Population.Agents + 1)

	// WHEN the population is built
	pop, err := New().Initialize(cfg, personIDs(cfg.Population.Agents), first, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	// THEN the first place is the bootstrap home and ids have no gaps
	require.NotEmpty(t, pop.Places)
	assert.Equal(t, first, pop.Places[0].ID)
	assert.Equal(t, cfg.PlaceTypeIndex("home"), pop.Places[0].Type)
	for i, spec := range pop.Places {
		assert.Equal(t, first+sim.AgentID(i), spec.ID)
	}
}

func TestInitialize_EveryPersonIsAssigned(t *testing.T) {
	cfg := smallConfig(t)
	persons := personIDs(cfg.Population.Agents)
	first := sim.AgentID(len(persons) + 1)

	pop, err := New().Initialize(cfg, persons, first, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	home := cfg.PlaceTypeIndex("home")
	last := first + sim.AgentID(len(pop.Places))
	require.Len(t, pop.Assignments, len(persons))
	for _, id := range persons {
		a, ok := pop.Assignments[id]
		require.True(t, ok, "person %d", id)
		assert.Len(t, a.Schedule, cfg.Layout.ScheduleSteps)
		require.Len(t, a.Isolation, 1)
		assert.Equal(t, home, a.Isolation[0].Type)
		for _, step := range a.Schedule {
			for _, ref := range step {
				assert.True(t, ref.ID >= first && ref.ID < last, "person %d visits unknown place %d", id, ref.ID)
			}
		}
	}
	for _, l := range pop.Links {
		assert.NotEqual(t, l[0], l[1], "self link")
	}
}

func TestInitialize_ClassesAreLedByFaculty(t *testing.T) {
	cfg := smallConfig(t)
	persons := personIDs(cfg.Population.Agents)

	pop, err := New().Initialize(cfg, persons, sim.AgentID(len(persons)+1), rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	class := cfg.PlaceTypeIndex("class")
	found := 0
	for _, spec := range pop.Places {
		if spec.Type != class || !spec.HasCenter {
			continue
		}
		found++
		assert.Equal(t, sim.Star, spec.Network)
		assert.Equal(t, sim.AffiliationFaculty, pop.Assignments[spec.Center].Affiliation)
	}
	assert.Positive(t, found)
}

func TestInitialize_DeterministicForSameSeed(t *testing.T) {
	cfg := smallConfig(t)
	persons := personIDs(cfg.Population.Agents)
	first := sim.AgentID(len(persons) + 1)

	a, err := New().Initialize(cfg, persons, first, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	b, err := New().Initialize(cfg, persons, first, rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestInitialize_Errors(t *testing.T) {
	cfg := smallConfig(t)

	_, err := New().Initialize(cfg, nil, 1, rand.New(rand.NewSource(1)))
	assert.ErrorContains(t, err, "no persons")

	noHome := *cfg
	noHome.PlaceTypes = []sim.PlaceTypeConfig{{Name: "work"}}
	_, err = New().Initialize(&noHome, personIDs(3), 4, rand.New(rand.NewSource(1)))
	assert.ErrorContains(t, err, `no "home" place type`)
}

func TestSchedule_WeekendsSkipWork(t *testing.T) {
	cfg := smallConfig(t)
	home := sim.PlaceRef{ID: 100}
	work := sim.PlaceRef{ID: 101}
	m := &member{kind: sim.AffiliationGeneral, home: []sim.PlaceRef{home}, work: []sim.PlaceRef{work}}

	got := schedule(cfg, m)

	require.Len(t, got, 7)
	for day := 0; day < 5; day++ {
		assert.Equal(t, []sim.PlaceRef{home, work}, got[day], "day %d", day)
	}
	assert.Equal(t, []sim.PlaceRef{home}, got[5])
	assert.Equal(t, []sim.PlaceRef{home}, got[6])
}

func TestDedupe(t *testing.T) {
	in := []sim.PlaceRef{{ID: 3}, {ID: 1}, {ID: 3}, {ID: 2}}
	assert.Equal(t, []sim.PlaceRef{{ID: 1}, {ID: 2}, {ID: 3}}, dedupe(in))
}
