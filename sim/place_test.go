package sim

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// certainConfig makes every unprotected contact transmit.
func certainConfig() *Config {
	cfg := DefaultConfig()
	cfg.Transmission.BaseInfectivity = 1
	cfg.StepsPerDay = 1
	return &cfg
}

func occupant(id AgentID, infectious bool, contactRate int) Received[PresenceMsg] {
	info := TransmissibilityInfo{Status: Susceptible, ContactRate: contactRate}
	if infectious {
		info.Status, info.Infectious = Infected, true
	}
	return Received[PresenceMsg]{From: id, Msg: PresenceMsg{Info: info}}
}

func testPlace(cfg *Config, spec PlaceSpec) *Place {
	return newPlaceFromSpec(spec, rand.New(rand.NewSource(1)), cfg)
}

func transmittedTargets(events []ContactEvent) []AgentID {
	var ids []AgentID
	for _, ev := range events {
		if ev.Transmitted {
			ids = append(ids, ev.Infected)
		}
	}
	return ids
}

func TestWhoToInfect_SingleOccupantHasNoContacts(t *testing.T) {
	cfg := certainConfig()
	pl := testPlace(cfg, PlaceSpec{ID: 50, Network: FullyConnected})
	assert.Nil(t, pl.WhoToInfect([]Received[PresenceMsg]{occupant(1, true, 5)}, cfg))
}

func TestWhoToInfect_FullyConnected(t *testing.T) {
	// GIVEN one infectious occupant whose contact rate covers everyone
	cfg := certainConfig()
	pl := testPlace(cfg, PlaceSpec{ID: 50, Network: FullyConnected})
	occ := []Received[PresenceMsg]{occupant(1, true, 10), occupant(2, false, 3), occupant(3, false, 3)}

	// WHEN contacts are evaluated
	events := pl.WhoToInfect(occ, cfg)

	// THEN every other occupant is infected by the infectious one
	require.Len(t, events, 2)
	assert.Equal(t, []AgentID{2, 3}, transmittedTargets(events))
	for _, ev := range events {
		assert.True(t, ev.HasInfector)
		assert.Equal(t, AgentID(1), ev.Infector)
		assert.Equal(t, AgentID(50), ev.Place)
	}
}

func TestWhoToInfect_ContactRateBoundsContacts(t *testing.T) {
	cfg := certainConfig()
	pl := testPlace(cfg, PlaceSpec{ID: 50, Network: FullyConnected})
	occ := []Received[PresenceMsg]{occupant(1, true, 2)}
	for id := AgentID(2); id <= 10; id++ {
		occ = append(occ, occupant(id, false, 1))
	}

	events := pl.WhoToInfect(occ, cfg)

	assert.Len(t, events, 2)
}

func TestWhoToInfect_StarWithoutCenterIsCancelled(t *testing.T) {
	cfg := certainConfig()
	pl := testPlace(cfg, PlaceSpec{ID: 50, Network: Star, Center: 99, HasCenter: true})
	occ := []Received[PresenceMsg]{occupant(1, true, 5), occupant(2, false, 5)}

	assert.Nil(t, pl.WhoToInfect(occ, cfg))
}

func TestWhoToInfect_StarInfectiousCenterInfectsSampledOccupants(t *testing.T) {
	// GIVEN an infectious center and a star contact budget of 2
	cfg := certainConfig()
	cfg.Transmission.StarContacts = 2
	pl := testPlace(cfg, PlaceSpec{ID: 50, Network: Star, Center: 1, HasCenter: true})
	occ := []Received[PresenceMsg]{occupant(1, true, 0), occupant(2, false, 0), occupant(3, false, 0), occupant(4, false, 0)}

	// WHEN contacts are evaluated
	events := pl.WhoToInfect(occ, cfg)

	// THEN exactly two non-center occupants are infected by the center
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, AgentID(1), ev.Infector)
		assert.NotEqual(t, AgentID(1), ev.Infected)
	}
}

func TestWhoToInfect_StarInfectiousOccupantInfectsCenter(t *testing.T) {
	// GIVEN a susceptible center and an infectious occupant
	cfg := certainConfig()
	cfg.Transmission.StarContacts = 5
	pl := testPlace(cfg, PlaceSpec{ID: 50, Network: Star, Center: 1, HasCenter: true})
	occ := []Received[PresenceMsg]{occupant(1, false, 0), occupant(2, true, 0), occupant(3, false, 0)}

	events := pl.WhoToInfect(occ, cfg)

	// THEN the center is the target and the occupant the infector
	require.Len(t, events, 1)
	assert.Equal(t, AgentID(1), events[0].Infected)
	assert.Equal(t, AgentID(2), events[0].Infector)
	assert.True(t, events[0].Transmitted)
}

func TestWhoToInfect_FlatPassOverridesEarlierEvents(t *testing.T) {
	// GIVEN a fully-connected place with a flat rate that never fires
	cfg := certainConfig()
	cfg.Transmission.FlatInfectionRate = 0
	pl := testPlace(cfg, PlaceSpec{ID: 50, Network: FullyConnectedWithFlatInfectionRate})
	occ := []Received[PresenceMsg]{occupant(1, true, 5), occupant(2, false, 5)}

	// WHEN contacts are evaluated
	events := pl.WhoToInfect(occ, cfg)

	// THEN every occupant carries the flat event and no transmission remains
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.False(t, ev.HasInfector)
		assert.False(t, ev.Transmitted)
	}
}

func TestWhoToInfect_FlatRateInfectsWithoutInfector(t *testing.T) {
	cfg := certainConfig()
	cfg.Transmission.FlatInfectionRate = 1
	cfg.OutputTransmissions = true
	pl := testPlace(cfg, PlaceSpec{ID: 50, Network: FlatInfectionRate})
	occ := []Received[PresenceMsg]{occupant(1, false, 0), occupant(2, false, 0)}

	events := pl.WhoToInfect(occ, cfg)

	assert.Equal(t, []AgentID{1, 2}, transmittedTargets(events))
	require.NotNil(t, events[0].InfectorInfo)
	assert.Equal(t, environmentInfector, *events[0].InfectorInfo)
}

func TestGenerateContactsAndInfect_NotifiesAndRecords(t *testing.T) {
	// GIVEN an infectious and a susceptible person at a fully-connected place
	cfg := certainConfig()
	pl := testPlace(cfg, PlaceSpec{ID: 50, Type: 1, Network: FullyConnected})
	a, b := occupant(1, true, 5), occupant(2, false, 5)
	ctx := testContext(4, cfg, 50, env(1, 50, a.Msg), env(2, 50, b.Msg))

	// WHEN the place runs its contact action
	require.NoError(t, pl.GenerateContactsAndInfect(ctx))

	// THEN the target is infected, the infector told, and the orchestrator
	// gets the aggregate counts
	assert.Len(t, sentTo[InfectionMsg](ctx.Out, 2), 1)
	assert.Len(t, sentTo[InfectedSomeoneMsg](ctx.Out, 1), 1)
	stats := sentTo[PlaceStatsMsg](ctx.Out, OrchestratorID)
	require.Len(t, stats, 1)
	assert.Equal(t, PlaceStatsMsg{PlaceType: 1, NumGotInfected: 1, NumStartedInfected: 1, TotalInPlace: 2}, stats[0])
	// AND occupancy is recorded for contact tracing
	assert.Equal(t, []OccupancyEntry{{Step: 4, Occupants: []AgentID{1, 2}}}, pl.Occupancy())
}

func TestGenerateContactsAndInfect_OmittedTypeKeepsNoOccupancy(t *testing.T) {
	cfg := certainConfig()
	building := cfg.PlaceTypeIndex("building")
	pl := testPlace(cfg, PlaceSpec{ID: 50, Type: building, Network: FlatInfectionRate})
	ctx := testContext(1, cfg, 50, env(3, 50, occupant(3, false, 1).Msg))

	require.NoError(t, pl.GenerateContactsAndInfect(ctx))

	assert.Empty(t, pl.Occupancy())
}

func TestSendOccupancy_AnswersEachRequesterOnce(t *testing.T) {
	cfg := certainConfig()
	pl := testPlace(cfg, PlaceSpec{ID: 50})
	pl.occupancy.Push(OccupancyEntry{Step: 2, Occupants: []AgentID{3, 4}})
	ctx := testContext(5, cfg, 50,
		env(4, 50, OccupancyRequestMsg{}),
		env(3, 50, OccupancyRequestMsg{}),
		env(4, 50, OccupancyRequestMsg{}))

	require.NoError(t, pl.SendOccupancy(ctx))

	assert.Equal(t, []AgentID{3, 4}, recipientsOf[OccupancyMsg](ctx.Out))
	msgs := sentTo[OccupancyMsg](ctx.Out, 3)
	require.Len(t, msgs, 1)
	assert.Equal(t, []OccupancyEntry{{Step: 2, Occupants: []AgentID{3, 4}}}, msgs[0].History)
}

func TestReceiveRoster_ConfiguresSelfAndSpawnsRest(t *testing.T) {
	// GIVEN a bootstrap place and a roster of three places
	cfg := certainConfig()
	pl := NewPlace(11, rand.New(rand.NewSource(1)))
	roster := []PlaceSpec{
		{ID: 11, Name: "home-1", Network: FullyConnected},
		{ID: 12, Name: "home-2"},
		{ID: 13, Name: "class-1", Network: Star, Center: 4, HasCenter: true},
	}
	var envs []Envelope
	for _, spec := range roster {
		envs = append(envs, env(OrchestratorID, 11, RosterMsg{Place: spec}))
	}
	ctx := testContext(0, cfg, 11, envs...)

	// WHEN the roster arrives
	require.NoError(t, pl.ReceiveRoster(ctx))

	// THEN the first entry describes the bootstrap place and the rest spawn
	assert.Equal(t, "home-1", pl.Spec().Name)
	assert.Equal(t, roster[1:], ctx.Out.spawns)

	// AND a second roster is rejected
	err := pl.ReceiveRoster(testContext(0, cfg, 11, envs...))
	assert.True(t, errors.Is(err, ErrMissingRoster))
}

func TestPlace_RegisterOutsideStepZero(t *testing.T) {
	cfg := certainConfig()
	pl := NewPlace(11, rand.New(rand.NewSource(1)))
	err := pl.Register(testContext(3, cfg, 11))
	assert.True(t, errors.Is(err, ErrInitOutsideStepZero))
}
