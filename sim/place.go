package sim

import (
	"fmt"
	"math/rand"
	"sort"
)

// PlaceSpec describes one place of the roster.
type PlaceSpec struct {
	ID          AgentID
	Name        string
	Type        int
	Optionality Optionality
	Network     NetworkType
	// Center is the distinguished occupant of STAR and center-dependent
	// places; HasCenter is false for every other topology.
	Center    AgentID
	HasCenter bool
}

// ContactEvent is the outcome of evaluating one potential transmission.
type ContactEvent struct {
	Infected    AgentID
	Infector    AgentID
	HasInfector bool
	Place       AgentID
	PlaceType   int
	Transmitted bool
	// Snapshots are only kept when transmission output is enabled.
	InfectedInfo *TransmissibilityInfo
	InfectorInfo *TransmissibilityInfo
}

// Place is a location agent. It owns its occupancy history.
type Place struct {
	ID        AgentID
	rng       *rand.Rand
	spec      PlaceSpec
	ready     bool
	occupancy *History[OccupancyEntry]
}

// NewPlace creates the bootstrap place agent, which learns its own spec
// from the roster at step 0.
func NewPlace(id AgentID, rng *rand.Rand) *Place {
	return &Place{ID: id, rng: rng, occupancy: NewHistory[OccupancyEntry](0)}
}

// newPlaceFromSpec creates a spawned place agent.
func newPlaceFromSpec(spec PlaceSpec, rng *rand.Rand, cfg *Config) *Place {
	return &Place{
		ID:        spec.ID,
		rng:       rng,
		spec:      spec,
		ready:     true,
		occupancy: NewHistory[OccupancyEntry](cfg.LookbackSteps()),
	}
}

// Spec returns the place's roster entry.
func (pl *Place) Spec() PlaceSpec {
	return pl.spec
}

// Occupancy returns the retained occupancy history, oldest first.
func (pl *Place) Occupancy() []OccupancyEntry {
	return pl.occupancy.Entries()
}

// Register announces the place to the orchestrator at step 0.
func (pl *Place) Register(ctx *StepContext) error {
	if ctx.Step != 0 {
		return fmt.Errorf("place %d register at step %d: %w", pl.ID, ctx.Step, ErrInitOutsideStepZero)
	}
	ctx.Out.Send(OrchestratorID, RegisterMsg{Kind: KindPlace})
	return nil
}

// ReceiveRoster initializes the bootstrap place from the first roster entry
// and spawns an agent for every other entry.
func (pl *Place) ReceiveRoster(ctx *StepContext) error {
	msgs := Receive[RosterMsg](ctx.Inbox)
	if len(msgs) == 0 {
		return nil
	}
	if ctx.Step != 0 {
		return fmt.Errorf("place %d roster at step %d: %w", pl.ID, ctx.Step, ErrInitOutsideStepZero)
	}
	if pl.ready {
		return fmt.Errorf("place %d received a roster after initialization: %w", pl.ID, ErrMissingRoster)
	}
	pl.spec = msgs[0].Msg.Place
	pl.spec.ID = pl.ID
	pl.ready = true
	pl.occupancy = NewHistory[OccupancyEntry](ctx.Config.LookbackSteps())
	for _, m := range msgs[1:] {
		ctx.Out.Spawn(m.Msg.Place)
	}
	return nil
}

// GenerateContactsAndInfect evaluates contacts among this step's occupants,
// notifies the newly infected and their infectors, reports aggregate counts
// to the orchestrator and records occupancy.
func (pl *Place) GenerateContactsAndInfect(ctx *StepContext) error {
	cfg := ctx.Config
	occupants := Receive[PresenceMsg](ctx.Inbox)
	present := distinctSenders(occupants)
	if len(occupants) > 0 {
		events := pl.WhoToInfect(occupants, cfg)
		gotInfected := 0
		for _, ev := range events {
			if !ev.Transmitted {
				continue
			}
			gotInfected++
			ctx.Out.Send(ev.Infected, InfectionMsg{})
			if !ev.HasInfector {
				continue
			}
			msg := InfectedSomeoneMsg{}
			if cfg.OutputTransmissions {
				msg.Audit = &TransmissionAudit{
					NewlyInfected:                   ev.Infected,
					NewlyInfectedMask:               ev.InfectedInfo.Mask,
					NewlyInfectedPhysicalDistancing: ev.InfectedInfo.PhysicalDistancing,
					InfectorMask:                    ev.InfectorInfo.Mask,
					Place:                           pl.ID,
					PlaceType:                       pl.spec.Type,
				}
			}
			ctx.Out.Send(ev.Infector, msg)
		}
		startedInfected := 0
		for _, o := range occupants {
			if o.Msg.Info.Status == Infected {
				startedInfected++
			}
		}
		ctx.Out.Send(OrchestratorID, PlaceStatsMsg{
			PlaceType:          pl.spec.Type,
			NumGotInfected:     gotInfected,
			NumStartedInfected: startedInfected,
			TotalInPlace:       len(present),
		})
	}
	if !cfg.OmittedFromContactTracing(pl.spec.Type) {
		pl.occupancy.Push(OccupancyEntry{Step: ctx.Step, Occupants: present})
	}
	return nil
}

// WhoToInfect runs the topology's contact passes over occupants (sorted by
// sender) and returns one event per target, ordered by target id. When
// passes overlap, the later pass's event for a target replaces the earlier.
func (pl *Place) WhoToInfect(occupants []Received[PresenceMsg], cfg *Config) []ContactEvent {
	if len(occupants) <= 1 {
		return nil
	}
	network := pl.spec.Network
	var center *Received[PresenceMsg]
	if pl.spec.HasCenter {
		for i := range occupants {
			if occupants[i].From == pl.spec.Center {
				center = &occupants[i]
				break
			}
		}
	}
	if network.needsCenter() && center == nil {
		return nil
	}

	keep := cfg.OutputTransmissions
	base := cfg.InfectionRate(pl.spec.Type)
	byTarget := make(map[AgentID]ContactEvent)
	contact := func(infector, target Received[PresenceMsg]) {
		ev := ContactEvent{
			Infected:    target.From,
			Infector:    infector.From,
			HasInfector: true,
			Place:       pl.ID,
			PlaceType:   pl.spec.Type,
			Transmitted: WillInfect(cfg, infector.Msg.Info, target.Msg.Info, base, pl.rng),
		}
		if keep {
			ev.InfectedInfo, ev.InfectorInfo = infoPtr(target.Msg.Info), infoPtr(infector.Msg.Info)
		}
		byTarget[target.From] = ev
	}

	if network == Star {
		for _, other := range sampleWithoutReplacement(allExcept(occupants, center.From), cfg.Transmission.StarContacts, pl.rng) {
			switch {
			case center.Msg.Info.Infectious:
				contact(*center, other)
			case other.Msg.Info.Infectious:
				contact(other, *center)
			}
		}
	}

	if network.hasFullyConnectedPass() {
		for _, occ := range occupants {
			if !occ.Msg.Info.Infectious {
				continue
			}
			for _, other := range sampleWithoutReplacement(allExcept(occupants, occ.From), occ.Msg.Info.ContactRate, pl.rng) {
				contact(occ, other)
			}
		}
	}

	if network.hasFlatPass() {
		for _, occ := range occupants {
			ev := ContactEvent{
				Infected:    occ.From,
				Place:       pl.ID,
				PlaceType:   pl.spec.Type,
				Transmitted: pl.rng.Float64() < cfg.Transmission.FlatInfectionRate,
			}
			if keep {
				ev.InfectedInfo, ev.InfectorInfo = infoPtr(occ.Msg.Info), infoPtr(environmentInfector)
			}
			byTarget[occ.From] = ev
		}
	}

	events := make([]ContactEvent, 0, len(byTarget))
	for _, ev := range byTarget {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Infected < events[j].Infected })
	return events
}

// SendOccupancy answers occupancy requests, once per requester.
func (pl *Place) SendOccupancy(ctx *StepContext) error {
	requests := Receive[OccupancyRequestMsg](ctx.Inbox)
	if len(requests) == 0 {
		return nil
	}
	history := pl.occupancy.Entries()
	for _, id := range distinctSenders(requests) {
		ctx.Out.Send(id, OccupancyMsg{History: history})
	}
	return nil
}

func allExcept(occupants []Received[PresenceMsg], id AgentID) []Received[PresenceMsg] {
	out := make([]Received[PresenceMsg], 0, len(occupants))
	for _, o := range occupants {
		if o.From != id {
			out = append(out, o)
		}
	}
	return out
}

func distinctSenders[T any](msgs []Received[T]) []AgentID {
	out := make([]AgentID, 0, len(msgs))
	for _, m := range msgs {
		if len(out) == 0 || out[len(out)-1] != m.From {
			out = append(out, m.From)
		}
	}
	return out
}

func infoPtr(info TransmissibilityInfo) *TransmissibilityInfo {
	return &info
}
