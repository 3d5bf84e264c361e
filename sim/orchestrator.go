package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/vivid-sim/vivid-sim/sim/trace"
)

// Population is the population initializer's output.
type Population struct {
	Assignments map[AgentID]PersonAssignment
	// Places is the roster; Places[0] describes the bootstrap place agent.
	Places []PlaceSpec
	Links  [][2]AgentID
}

// PopulationInitializer builds places, schedules and social links for the
// registered persons. firstPlace is the id of the bootstrap place agent;
// the initializer allocates the remaining place ids above it.
type PopulationInitializer interface {
	Initialize(cfg *Config, persons []AgentID, firstPlace AgentID, rng *rand.Rand) (*Population, error)
}

// TestSelector picks up to n of candidates for randomized testing, given
// their test-selection multipliers. Candidates are sorted by id.
type TestSelector func(candidates []AgentID, multipliers map[AgentID]float64, n int, rng *rand.Rand) []AgentID

// UniformTestSelector ignores multipliers and picks uniformly.
func UniformTestSelector(candidates []AgentID, _ map[AgentID]float64, n int, rng *rand.Rand) []AgentID {
	pool := make([]AgentID, len(candidates))
	copy(pool, candidates)
	shuffleIDs(rng, pool)
	if n < len(pool) {
		pool = pool[:n]
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })
	return pool
}

// WeightedTestSelector samples without replacement with probability
// proportional to each candidate's multiplier.
func WeightedTestSelector(candidates []AgentID, multipliers map[AgentID]float64, n int, rng *rand.Rand) []AgentID {
	type keyed struct {
		id  AgentID
		key float64
	}
	keys := make([]keyed, 0, len(candidates))
	for _, id := range candidates {
		w := multipliers[id]
		u := rng.Float64()
		if w <= 0 {
			continue
		}
		keys = append(keys, keyed{id: id, key: math.Pow(u, 1/w)})
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].key > keys[j].key })
	if n < len(keys) {
		keys = keys[:n]
	}
	out := make([]AgentID, len(keys))
	for i, k := range keys {
		out[i] = k.id
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type pendingTest struct {
	agent    AgentID
	returnAt int
	positive bool
}

// Orchestrator coordinates testing, contact tracing, quarantine release,
// suppression and vaccines, and aggregates statistics.
type Orchestrator struct {
	ID          AgentID
	rng         *rand.Rand
	popRNG      *rand.Rand
	initializer PopulationInitializer
	selector    TestSelector

	monitored   map[AgentID]bool
	toInterview map[AgentID]bool
	queue       *QuarantineQueue
	releaseAt   map[AgentID]int
	multipliers map[AgentID]float64
	pending     []pendingTest

	testsThisStep     int
	testsAdministered int
	testsReturned     int
	positiveReturned  int

	buildings     []BuildingStats
	secondary     map[AgentID]int
	transmissions []trace.TransmissionRecord
	stats         Statistics
}

// NewOrchestrator creates the orchestrator. popRNG is handed to the
// population initializer. A nil selector selects uniformly.
func NewOrchestrator(rng, popRNG *rand.Rand, init PopulationInitializer, selector TestSelector) *Orchestrator {
	if selector == nil {
		selector = UniformTestSelector
	}
	return &Orchestrator{
		ID:          OrchestratorID,
		rng:         rng,
		popRNG:      popRNG,
		initializer: init,
		selector:    selector,
		monitored:   make(map[AgentID]bool),
		toInterview: make(map[AgentID]bool),
		queue:       NewQuarantineQueue(),
		releaseAt:   make(map[AgentID]int),
		multipliers: make(map[AgentID]float64),
		secondary:   make(map[AgentID]int),
	}
}

// Monitor adds a case to contact-tracing surveillance.
func (o *Orchestrator) Monitor(id AgentID) {
	o.monitored[id] = true
}

// IsMonitored reports whether id is under surveillance.
func (o *Orchestrator) IsMonitored(id AgentID) bool {
	return o.monitored[id]
}

// Statistics returns the most recent per-step record.
func (o *Orchestrator) Statistics() Statistics {
	return o.stats
}

// Buildings returns the per place type infection counters.
func (o *Orchestrator) Buildings() []BuildingStats {
	out := make([]BuildingStats, len(o.buildings))
	copy(out, o.buildings)
	return out
}

// SecondaryInfections returns, per person, how many others they infected.
func (o *Orchestrator) SecondaryInfections() map[AgentID]int {
	out := make(map[AgentID]int, len(o.secondary))
	for id, n := range o.secondary {
		out[id] = n
	}
	return out
}

// DrainTransmissions returns and clears the audit rows gathered so far.
func (o *Orchestrator) DrainTransmissions() []trace.TransmissionRecord {
	out := o.transmissions
	o.transmissions = nil
	return out
}

// === Bootstrap ===

// InitializePopulation runs the population initializer over the registered
// persons, sends every person its assignment and streams the roster to the
// single bootstrap place agent.
func (o *Orchestrator) InitializePopulation(ctx *StepContext) error {
	if ctx.Step != 0 {
		return fmt.Errorf("orchestrator initialization at step %d: %w", ctx.Step, ErrInitOutsideStepZero)
	}
	var persons, places []AgentID
	for _, m := range Receive[RegisterMsg](ctx.Inbox) {
		switch m.Msg.Kind {
		case KindPerson:
			persons = append(persons, m.From)
		case KindPlace:
			places = append(places, m.From)
		}
	}
	if len(places) != 1 {
		return fmt.Errorf("found %d place agents at bootstrap: %w", len(places), ErrMissingRoster)
	}
	pop, err := o.initializer.Initialize(ctx.Config, persons, places[0], o.popRNG)
	if err != nil {
		return fmt.Errorf("population initializer: %w", err)
	}
	if len(pop.Places) == 0 {
		return fmt.Errorf("population initializer produced no places: %w", ErrMissingRoster)
	}
	for _, id := range persons {
		a, ok := pop.Assignments[id]
		if !ok {
			return fmt.Errorf("population initializer produced no assignment for person %d", id)
		}
		ctx.Out.Send(id, AssignmentMsg{Assignment: a})
	}
	for _, spec := range pop.Places {
		ctx.Out.Send(places[0], RosterMsg{Place: spec})
	}
	for _, l := range pop.Links {
		ctx.Out.Link(l[0], l[1])
	}
	o.buildings = make([]BuildingStats, len(ctx.Config.PlaceTypes))
	for i, pt := range ctx.Config.PlaceTypes {
		o.buildings[i].Name = pt.Name
	}
	logrus.Debugf("bootstrap: %d persons, %d places, %d social links", len(persons), len(pop.Places), len(pop.Links))
	return nil
}

// === Suppression and vaccines ===

// RebalanceSuppression flips randomly chosen persons so the number of
// active persons matches the target for this step. Only susceptible
// persons are suppressed; when too few are eligible the population stays
// above target.
func (o *Orchestrator) RebalanceSuppression(ctx *StepContext) error {
	var suppressed, eligible []AgentID
	active := 0
	for _, m := range Receive[SuppressionReportMsg](ctx.Inbox) {
		switch {
		case m.Msg.Suppressed:
			suppressed = append(suppressed, m.From)
		case m.Msg.Eligible:
			active++
			eligible = append(eligible, m.From)
		default:
			active++
		}
	}
	target := ctx.Config.ActiveAgentsAt(ctx.Step)
	switch {
	case active < target:
		for _, id := range o.pick(suppressed, target-active) {
			ctx.Out.Send(id, SuppressionMsg{Suppress: false})
		}
	case active > target:
		for _, id := range o.pick(eligible, active-target) {
			ctx.Out.Send(id, SuppressionMsg{Suppress: true})
		}
	}
	return nil
}

// pick returns n ids chosen uniformly by a seeded shuffle, or all of them
// when n covers the set.
func (o *Orchestrator) pick(ids []AgentID, n int) []AgentID {
	if n >= len(ids) {
		return ids
	}
	pool := make([]AgentID, len(ids))
	copy(pool, ids)
	shuffleIDs(o.rng, pool)
	return pool[:n]
}

// DistributeVaccines vaccinates up to the per-step quota of requesters and
// records this step's test-selection multipliers.
func (o *Orchestrator) DistributeVaccines(ctx *StepContext) error {
	o.multipliers = make(map[AgentID]float64)
	for _, m := range Receive[TestMultiplierMsg](ctx.Inbox) {
		o.multipliers[m.From] = m.Msg.Multiplier
	}
	quota := ctx.Config.Vaccine.PerStep
	requests := Receive[VaccineRequestMsg](ctx.Inbox)
	if quota == 0 || len(requests) == 0 {
		return nil
	}
	ids := make([]AgentID, len(requests))
	for i, m := range requests {
		ids[i] = m.From
	}
	shuffleIDs(o.rng, ids)
	if quota < len(ids) {
		ids = ids[:quota]
	}
	for _, id := range ids {
		ctx.Out.Send(id, VaccinatedMsg{})
	}
	return nil
}

// === Place reports ===

// ProcessPlaceStats folds this step's place reports into the building
// counters.
func (o *Orchestrator) ProcessPlaceStats(ctx *StepContext) error {
	for i := range o.buildings {
		o.buildings[i].resetWindows(ctx.Step, ctx.Config.StepsPerDay)
	}
	for _, m := range Receive[PlaceStatsMsg](ctx.Inbox) {
		if m.Msg.PlaceType < 0 || m.Msg.PlaceType >= len(o.buildings) {
			logrus.Warnf("place %d reported unknown place type %d", m.From, m.Msg.PlaceType)
			continue
		}
		o.buildings[m.Msg.PlaceType].add(m.Msg)
	}
	return nil
}

// === Contact tracing ===

// HandleSymptomaticAndResults expires quarantines due this step, applies the
// contact tracing protocol to symptomatic monitored cases, releases test
// results due this step and starts the interviews they trigger.
func (o *Orchestrator) HandleSymptomaticAndResults(ctx *StepContext) error {
	for _, m := range Receive[TransmissionReportMsg](ctx.Inbox) {
		o.transmissions = append(o.transmissions, m.Msg.Record)
	}
	o.drainQuarantineQueue(ctx.Step)
	if err := o.receiveSymptomatic(ctx); err != nil {
		return err
	}
	o.releaseTestResults(ctx)
	o.startInterviews(ctx)
	return nil
}

func (o *Orchestrator) drainQuarantineQueue(step int) {
	for _, info := range o.queue.PopDue(step) {
		if until, ok := o.releaseAt[info.Agent]; ok && until == info.Until {
			delete(o.monitored, info.Agent)
			delete(o.releaseAt, info.Agent)
		}
	}
}

func (o *Orchestrator) schedule(id AgentID, until int) {
	o.queue.Schedule(QuarantineInfo{Agent: id, Until: until})
	o.releaseAt[id] = until
}

func (o *Orchestrator) receiveSymptomatic(ctx *StepContext) error {
	protocol := ctx.Config.Protocol()
	for _, m := range Receive[SymptomaticMsg](ctx.Inbox) {
		id := m.From
		if !o.monitored[id] {
			continue
		}
		ctx.Out.Send(id, QuarantineOrderMsg{})
		switch protocol {
		case ProtocolBestPractice:
			o.toInterview[id] = true
			delete(o.monitored, id)
		case ProtocolConservative:
			ctx.Out.Send(id, TestOrderMsg{})
		case ProtocolTestOnly:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidProtocol, ctx.Config.Tracing.Protocol)
		}
	}
	return nil
}

func (o *Orchestrator) releaseTestResults(ctx *StepContext) {
	remaining := o.pending[:0]
	for _, t := range o.pending {
		if t.returnAt > ctx.Step {
			remaining = append(remaining, t)
			continue
		}
		o.testsReturned++
		if t.positive {
			o.positiveReturned++
			o.toInterview[t.agent] = true
			ctx.Out.Send(t.agent, QuarantineOrderMsg{})
			delete(o.monitored, t.agent)
			o.schedule(t.agent, ctx.Step+ctx.Config.QuarantineSteps())
		} else if ctx.Config.Protocol() == ProtocolTestOnly {
			delete(o.monitored, t.agent)
			ctx.Out.Send(t.agent, QuarantineReleaseMsg{})
		}
	}
	o.pending = remaining
}

func (o *Orchestrator) startInterviews(ctx *StepContext) {
	ids := make([]AgentID, 0, len(o.toInterview))
	for id := range o.toInterview {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		ctx.Out.Send(id, StartInterviewMsg{})
	}
	o.toInterview = make(map[AgentID]bool)
}

// ProcessInterviewContacts puts every newly reported contact under
// surveillance, orders it into quarantine from its most recent exposure
// and, where the protocol allows, tests it while tests remain.
func (o *Orchestrator) ProcessInterviewContacts(ctx *StepContext) error {
	cfg := ctx.Config
	protocol := cfg.Protocol()
	testContacts := (protocol == ProtocolBestPractice || protocol == ProtocolTestOnly) && cfg.Tracing.TestingAvailableForTracing
	// one budget covers every interview this step
	testsAvailable := o.testsPerDay(cfg) - o.testsThisStep
	for _, m := range Receive[InterviewResultsMsg](ctx.Inbox) {
		ordered := make(map[AgentID]bool)
		tested := make(map[AgentID]bool)
		days := m.Msg.Contacts
		for i := len(days) - 1; i >= 0; i-- {
			exposure := ctx.Step - (len(days) - (i + 1))
			for _, contact := range days[i] {
				if contact == m.From || o.monitored[contact] {
					continue
				}
				o.monitored[contact] = true
				if !ordered[contact] {
					exp := exposure
					ctx.Out.Send(contact, QuarantineOrderMsg{ExposureStep: &exp})
					ordered[contact] = true
					o.schedule(contact, exposure+cfg.QuarantineSteps())
				}
				if testContacts && !tested[contact] && testsAvailable > 0 {
					ctx.Out.Send(contact, TestOrderMsg{})
					tested[contact] = true
					testsAvailable--
				}
			}
		}
	}
	return nil
}

func (o *Orchestrator) testsPerDay(cfg *Config) int {
	return cfg.Testing.TestsPerDay
}

// === Testing ===

// ProcessTestSamples turns received samples into results due after the
// configured delay.
func (o *Orchestrator) ProcessTestSamples(ctx *StepContext) error {
	for _, m := range Receive[TestSampleMsg](ctx.Inbox) {
		positive := m.Msg.Status == Infected
		if o.rng.Float64() > m.Msg.Accuracy {
			positive = !positive
		}
		o.pending = append(o.pending, pendingTest{
			agent:    m.From,
			returnAt: ctx.Step + ctx.Config.Testing.DelaySteps,
			positive: positive,
		})
		o.testsThisStep++
	}
	return nil
}

// ProcessTestSamplesAndRandomTesting records samples and then spends the
// remaining test budget on randomized testing.
func (o *Orchestrator) ProcessTestSamplesAndRandomTesting(ctx *StepContext) error {
	if err := o.ProcessTestSamples(ctx); err != nil {
		return err
	}
	available := o.testsPerDay(ctx.Config) - o.testsThisStep
	if available <= 0 {
		return nil
	}
	candidates := make([]AgentID, 0, len(o.multipliers))
	for id := range o.multipliers {
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	for _, id := range o.selector(candidates, o.multipliers, available, o.rng) {
		o.testsAdministered++
		ctx.Out.Send(id, TestOrderMsg{})
	}
	return nil
}

// === End of step ===

// CollectStatistics processes deaths, aggregates status reports into this
// step's Statistics record, updates building ratios and injects random
// infections for the next action.
func (o *Orchestrator) CollectStatistics(ctx *StepContext) error {
	for _, m := range Receive[RIPMsg](ctx.Inbox) {
		delete(o.multipliers, m.From)
		delete(o.monitored, m.From)
	}
	s := Statistics{Step: ctx.Step}
	var susceptible []AgentID
	for _, m := range Receive[StatusReportMsg](ctx.Inbox) {
		r := m.Msg
		switch r.Status {
		case Susceptible:
			s.Susceptible++
			susceptible = append(susceptible, m.From)
			if r.Isolating {
				s.QuarantinedSusceptible++
			}
		case Infected:
			s.Infected++
			if r.Isolating {
				s.QuarantinedInfected++
			}
		case Recovered:
			s.Recovered++
		case Dead:
			s.Dead++
		}
		if r.NewlyInfected {
			s.NewInfections++
		}
		o.secondary[m.From] = r.NumPeopleInfected
	}
	s.DetectedCases = o.positiveReturned
	s.TestsReturned = o.testsReturned
	if o.testsReturned > 0 {
		s.TestPositivity = float64(o.positiveReturned) / float64(o.testsReturned) * 100
	}
	o.stats = s

	for i := range o.buildings {
		o.buildings[i].updateRatios(ctx.Step, ctx.Config.StepsPerDay)
	}

	n := ctx.Config.Population.NumToRandomlyInfect
	denominator := ctx.Config.ActiveAgentsAt(ctx.Step) - s.Infected
	if n > 0 && denominator > 0 {
		msg := RandomInfectionMsg{Probability: float64(n) / float64(denominator)}
		for _, id := range susceptible {
			ctx.Out.Send(id, msg)
		}
	}
	o.testsThisStep = 0
	return nil
}
