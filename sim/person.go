package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/vivid-sim/vivid-sim/sim/trace"
)

// OrchestratorID is the agent id of the single orchestrator.
const OrchestratorID AgentID = 0

// StepContext is everything an agent sees during one action.
type StepContext struct {
	Step   int
	Config *Config
	Links  *Graph
	Inbox  Inbox
	Out    *Outbox
}

// Person is one simulated individual. All mutable state is owned by the
// person and changes only inside its own actions.
type Person struct {
	ID          AgentID
	rng         *rand.Rand
	affiliation Affiliation

	Age        float64
	Status     InfectionStatus
	Vaccinated bool
	Mask       MaskType

	suppressed       bool
	timeInfected     int
	trajectory       Trajectory
	infectedThisStep bool

	compMask                      float64
	compQuarantineWhenSymptomatic float64
	compSymptomsReport            float64
	compIsolating                 float64
	compIsolateWhenNotified       float64
	compPhysicalDistancing        float64
	ContactRate                   int
	probGoesToOptionalPlace       float64
	probHostsEvent                float64
	probAttendsEvent              float64
	fitnessTimesPerWeek           int

	schedule         [][]PlaceRef
	isolationPlaces  []PlaceRef
	home             *PlaceRef
	currentPlaces    []PlaceRef
	additionalPlaces []PlaceRef
	decidedAt        int
	placeHistory     *History[visit]

	isolatingForSymptoms bool
	isolatingForTracing  bool
	tracingStartedAt     int
	tested               bool

	otherIllness         bool
	otherIllnessStarted  int
	otherIllnessRecovery int

	numPeopleInfected int
}

// visit is the set of places a person occupied at one step.
type visit struct {
	Step   int
	Places []AgentID
}

// NewPerson creates an uninitialized person; attributes are drawn when the
// population assignment arrives at step 0.
func NewPerson(id AgentID, rng *rand.Rand) *Person {
	return &Person{
		ID:               id,
		rng:              rng,
		affiliation:      generalAffiliation{},
		decidedAt:        -1,
		tracingStartedAt: math.MinInt,
		placeHistory:     NewHistory[visit](0),
	}
}

// Affiliation returns the person's affiliation kind.
func (p *Person) Affiliation() string {
	return p.affiliation.Kind()
}

// Suppressed reports whether the person is currently inert.
func (p *Person) Suppressed() bool {
	return p.suppressed
}

// Trajectory returns the current infection's trajectory.
func (p *Person) Trajectory() Trajectory {
	return p.trajectory
}

// Isolating reports whether the person is isolating for symptoms or
// because of contact tracing.
func (p *Person) Isolating() bool {
	return p.isolatingForSymptoms || p.isolatingForTracing
}

// NumPeopleInfected is the number of people this person directly infected.
func (p *Person) NumPeopleInfected() int {
	return p.numPeopleInfected
}

// active reports whether the person takes part in suppressible actions.
func (p *Person) active() bool {
	return !p.suppressed
}

// === Bootstrap ===

// Register sends the person to the orchestrator for schedule creation.
func (p *Person) Register(ctx *StepContext) error {
	if ctx.Step != 0 {
		return fmt.Errorf("person %d register at step %d: %w", p.ID, ctx.Step, ErrInitOutsideStepZero)
	}
	ctx.Out.Send(OrchestratorID, RegisterMsg{Kind: KindPerson})
	return nil
}

// ReceiveAssignment draws the person's attributes from its affiliation's
// table, installs the schedule and seeds the initial infection state.
func (p *Person) ReceiveAssignment(ctx *StepContext) error {
	if ctx.Step != 0 {
		return fmt.Errorf("person %d assignment at step %d: %w", p.ID, ctx.Step, ErrInitOutsideStepZero)
	}
	msgs := Receive[AssignmentMsg](ctx.Inbox)
	if len(msgs) == 0 {
		return fmt.Errorf("person %d received no assignment: %w", p.ID, ErrMissingRoster)
	}
	a := msgs[0].Msg.Assignment
	if !ValidAffiliations[a.Affiliation] {
		return fmt.Errorf("person %d: unknown affiliation %q", p.ID, a.Affiliation)
	}
	cfg := ctx.Config
	p.affiliation = NewAffiliation(a.Affiliation, a.StudentFacing)
	p.schedule = a.Schedule
	p.isolationPlaces = sortedRefs(a.Isolation)
	p.placeHistory = NewHistory[visit](cfg.LookbackSteps())

	if err := p.initialize(cfg); err != nil {
		return err
	}
	p.modifyCompliance(cfg.Interventions.ComplianceModifier)
	if p.Status == Infected {
		if err := p.setInfected(ctx); err != nil {
			return err
		}
	}
	p.affiliation.InitialPlace(p, cfg)
	return nil
}

func (p *Person) initialize(cfg *Config) error {
	info := p.affiliation.InitializationInfo(cfg)
	if info.AgeSD > 0 {
		p.Age = TruncatedNormal(p.rng, info.AgeMean, info.AgeSD, info.Age)
	} else {
		p.Age = Uniform(p.rng, info.Age)
	}
	if cfg.Masks.Mandate {
		p.compMask = Uniform(p.rng, info.MaskCompliance)
		mask, err := Categorical(p.rng,
			[]MaskType{MaskHomemadeCloth, MaskSurgical, MaskN95},
			[]float64{cfg.Masks.PercHomemadeCloth, cfg.Masks.PercSurgical, cfg.Masks.PercN95})
		if err != nil {
			return fmt.Errorf("person %d mask type: %w", p.ID, err)
		}
		p.Mask = mask
	}
	p.compQuarantineWhenSymptomatic = Uniform(p.rng, info.QuarantineWhenSymptomatic)
	p.compSymptomsReport = Uniform(p.rng, info.SymptomsReport)
	p.compIsolating = Uniform(p.rng, info.Isolation)
	p.compIsolateWhenNotified = Uniform(p.rng, info.IsolateWhenContactNotified)
	p.compPhysicalDistancing = Uniform(p.rng, info.PhysicalDistancing)
	p.ContactRate = Discrete(p.rng, cfg.Population.ContactRate.Start, cfg.Population.ContactRate.End)
	p.probGoesToOptionalPlace = Uniform(p.rng, info.ProbGoesToOptionalPlace)
	p.probHostsEvent = Uniform(p.rng, info.HostsEvent)
	p.probAttendsEvent = Uniform(p.rng, info.AttendsEvent)
	if len(info.FitnessTimesPerWeek) > 0 {
		values := make([]int, len(info.FitnessTimesPerWeek))
		for i := range values {
			values[i] = i
		}
		times, err := Categorical(p.rng, values, info.FitnessTimesPerWeek)
		if err != nil {
			return fmt.Errorf("person %d fitness frequency: %w", p.ID, err)
		}
		p.fitnessTimesPerWeek = times
	}
	p.Vaccinated = CoinFlip(p.rng, cfg.Population.PercInitiallyVaccinated)

	pop := cfg.Population
	switch {
	case p.rng.Float64() < pop.PercInitiallyRecovered:
		p.Status = Recovered
	case p.rng.Float64() < pop.PercInitiallyInfected/(1-pop.PercInitiallyRecovered):
		p.Status = Infected
		p.timeInfected = Discrete(p.rng, -7, 0)
	default:
		p.Status = Susceptible
	}

	suppressionPerc := 0.0
	if pop.Agents > 0 {
		suppressionPerc = 1 - float64(pop.ActiveAgents)/float64(pop.Agents)
	}
	if p.rng.Float64() < suppressionPerc {
		p.suppressed = true
		p.Status = Suppressed
	}
	return nil
}

// modifyCompliance scales every compliance by m. Negative values and 1.0
// leave compliances untouched.
func (p *Person) modifyCompliance(m float64) {
	if m < 0 || m == 1.0 {
		return
	}
	p.compSymptomsReport *= m
	p.compQuarantineWhenSymptomatic *= m
	p.compMask *= m
	p.compIsolating *= m
	p.compIsolateWhenNotified *= m
	p.compPhysicalDistancing *= m
}

// === Infection state ===

// setInfected moves the person to INFECTED and samples the trajectory.
func (p *Person) setInfected(ctx *StepContext) error {
	if p.Status == Suppressed {
		return fmt.Errorf("person %d: %w", p.ID, ErrSuppressedInfection)
	}
	p.Status = Infected
	p.infectedThisStep = true
	if ctx.Step > 0 {
		p.timeInfected = ctx.Step
	}
	cfg := ctx.Config
	tr, err := SampleTrajectory(p.rng, cfg.Trajectory, cfg.StepsPerDay, p.timeInfected)
	if err != nil {
		return fmt.Errorf("person %d trajectory: %w", p.ID, err)
	}
	p.trajectory = tr

	if ctx.Step == 0 {
		if p.isSymptomatic(ctx.Step) && p.rng.Float64() < p.compQuarantineWhenSymptomatic {
			p.isolatingForSymptoms = true
		}
		if p.rng.Float64() < cfg.Population.PercInitialQuarantineOrder {
			if p.rng.Float64() < p.compIsolateWhenNotified {
				p.isolatingForTracing = true
				p.tracingStartedAt = 0
			}
		}
	}
	return nil
}

func (p *Person) isSymptomatic(step int) bool {
	if p.Status == Infected && p.trajectory.SymptomOnset <= step && !p.trajectory.Asymptomatic {
		return true
	}
	return p.otherIllness
}

func (p *Person) isInfectious(step int) bool {
	return p.Status == Infected && p.trajectory.Infectious <= step
}

func (p *Person) isFirstTimeSymptomatic(step int) bool {
	if !p.isSymptomatic(step) {
		return false
	}
	covid := p.Status == Infected && !p.trajectory.Asymptomatic
	if (covid && p.trajectory.SymptomOnset < step) || (p.otherIllness && p.otherIllnessStarted < step) {
		return false
	}
	return (covid && p.trajectory.SymptomOnset == step) || (p.otherIllness && p.otherIllnessStarted == step)
}

// === Suppression, vaccines and testing weight ===

// ReportSuppression tells the orchestrator whether this person is active
// and whether it may change suppression state.
func (p *Person) ReportSuppression(ctx *StepContext) error {
	ctx.Out.Send(OrchestratorID, SuppressionReportMsg{
		Suppressed: p.suppressed,
		Eligible:   p.suppressed || p.Status == Susceptible,
	})
	return nil
}

// UpdateSuppression applies a reassignment, then asks for a vaccine and
// reports the test-selection weight.
func (p *Person) UpdateSuppression(ctx *StepContext) error {
	if msgs := Receive[SuppressionMsg](ctx.Inbox); len(msgs) > 0 {
		assign := msgs[0].Msg.Suppress
		if assign == p.suppressed {
			return fmt.Errorf("person %d suppressed=%t: %w", p.ID, assign, ErrRedundantSuppression)
		}
		// SUSCEPTIBLE <-> SUPPRESSED is the only reversible transition
		if assign && p.Status != Susceptible {
			return fmt.Errorf("person %d is %s: %w", p.ID, p.Status, ErrIneligibleSuppression)
		}
		if assign {
			p.Status = Suppressed
		} else {
			p.Status = Susceptible
		}
		p.suppressed = assign
	}
	if !p.active() || p.Status == Dead {
		return nil
	}
	if !p.Vaccinated {
		ctx.Out.Send(OrchestratorID, VaccineRequestMsg{})
	}
	ctx.Out.Send(OrchestratorID, TestMultiplierMsg{Multiplier: p.affiliation.TestSelectionMultiplier(ctx.Config)})
	return nil
}

// ReceiveVaccineAndHostEvent applies a vaccination and decides whether to
// host an informal gathering, inviting every social link.
func (p *Person) ReceiveVaccineAndHostEvent(ctx *StepContext) error {
	if Has[VaccinatedMsg](ctx.Inbox) {
		p.Vaccinated = true
	}
	if !p.active() {
		return nil
	}
	if p.rng.Float64() < p.probHostsEvent && p.home != nil && p.Status != Dead {
		invite := EventInviteMsg{Place: p.home.ID}
		for _, friend := range ctx.Links.Neighbors(p.ID) {
			ctx.Out.Send(friend, invite)
		}
		ctx.Out.Send(p.ID, invite)
	}
	return nil
}

// === Movement ===

// AttendEventAndMove accepts invitations, decides where to go and reports
// presence to every place visited.
func (p *Person) AttendEventAndMove(ctx *StepContext) error {
	if !p.active() {
		p.currentPlaces, p.additionalPlaces = nil, nil
		return nil
	}
	p.additionalPlaces = nil
	for _, inv := range Receive[EventInviteMsg](ctx.Inbox) {
		if p.rng.Float64() < p.probAttendsEvent {
			p.additionalPlaces = append(p.additionalPlaces, PlaceRef{ID: inv.Msg.Place, Type: ctx.Config.PlaceTypeIndex("home"), Optionality: Optional})
		}
	}
	if p.Status == Dead {
		return nil
	}
	p.DecideNextLocation(ctx.Step, ctx.Config)
	p.executeMovement(ctx)
	return nil
}

// DecideNextLocation picks the places for this step. The decision is made
// once per step; later calls in the same step return the same set.
func (p *Person) DecideNextLocation(step int, cfg *Config) []PlaceRef {
	if p.decidedAt == step {
		return p.currentPlaces
	}
	p.decidedAt = step
	if p.suppressed {
		p.currentPlaces = nil
		return nil
	}
	if p.isolatingForTracing && p.tracingStartedAt > 0 && p.tracingStartedAt+cfg.QuarantineSteps() < step {
		p.isolatingForTracing = false
	}
	if p.choosesToIsolate(cfg) {
		p.currentPlaces = p.isolationPlaces
		return p.currentPlaces
	}
	var places []PlaceRef
	for _, ref := range p.scheduledPlaces(step) {
		if p.isAttending(ref, cfg) {
			places = append(places, ref)
		}
	}
	p.currentPlaces = sortedRefs(places)
	return p.currentPlaces
}

func (p *Person) choosesToIsolate(cfg *Config) bool {
	return (p.Isolating() && p.rng.Float64() < p.compIsolating) || cfg.Interventions.ForceIsolate
}

func (p *Person) scheduledPlaces(step int) []PlaceRef {
	if len(p.schedule) == 0 {
		return nil
	}
	return p.schedule[step%len(p.schedule)]
}

func (p *Person) isAttending(ref PlaceRef, cfg *Config) bool {
	if attend, ok := p.affiliation.AttendanceOverride(p, ref, cfg); ok {
		return attend
	}
	if ref.Optionality == Mandatory {
		return true
	}
	return p.rng.Float64() < p.probGoesToOptionalPlace
}

func (p *Person) executeMovement(ctx *StepContext) {
	cfg := ctx.Config
	ids := make([]AgentID, 0, len(p.currentPlaces)+len(p.additionalPlaces))
	for _, ref := range p.currentPlaces {
		ids = append(ids, ref.ID)
	}
	for _, ref := range p.additionalPlaces {
		ids = append(ids, ref.ID)
	}
	p.placeHistory.Push(visit{Step: ctx.Step, Places: ids})

	for _, ref := range p.currentPlaces {
		wears := p.compMask > p.rng.Float64()
		ctx.Out.Send(ref.ID, PresenceMsg{Info: p.snapshot(ctx.Step, cfg, wears, 1)})
	}
	red := cfg.Transmission.AdditionalPlaceComplianceReduction
	for _, ref := range p.additionalPlaces {
		wears := p.compMask*red > p.rng.Float64()
		ctx.Out.Send(ref.ID, PresenceMsg{Info: p.snapshot(ctx.Step, cfg, wears, red)})
	}
}

func (p *Person) snapshot(step int, cfg *Config, wearsMask bool, distancingScale float64) TransmissibilityInfo {
	info := TransmissibilityInfo{
		Status:             p.Status,
		Infectious:         p.isInfectious(step),
		Symptomatic:        p.isSymptomatic(step),
		Mask:               MaskNone,
		PhysicalDistancing: p.compPhysicalDistancing * distancingScale,
		ContactRate:        p.ContactRate,
	}
	if wearsMask {
		info.Mask = p.Mask
	}
	if p.Vaccinated {
		info.VaccineIn = cfg.Vaccine.Efficacy
		info.VaccineOut = cfg.Vaccine.OutEfficacy
	}
	return info
}

// === Transmission outcome and symptoms ===

// ReceiveInfectionAndReportSymptoms handles this step's transmissions and
// then reports symptoms.
func (p *Person) ReceiveInfectionAndReportSymptoms(ctx *StepContext) error {
	if !p.active() {
		return nil
	}
	if Has[InfectionMsg](ctx.Inbox) && p.Status == Susceptible {
		if err := p.setInfected(ctx); err != nil {
			return err
		}
	}
	infected := Receive[InfectedSomeoneMsg](ctx.Inbox)
	p.numPeopleInfected += len(infected)
	if ctx.Config.OutputTransmissions {
		for _, m := range infected {
			if m.Msg.Audit != nil {
				ctx.Out.Send(OrchestratorID, TransmissionReportMsg{Record: p.transmissionRecord(ctx, m.Msg.Audit)})
			}
		}
	}
	p.reportSymptoms(ctx)
	return nil
}

func (p *Person) transmissionRecord(ctx *StepContext, a *TransmissionAudit) trace.TransmissionRecord {
	placeType := ""
	if a.PlaceType >= 0 && a.PlaceType < len(ctx.Config.PlaceTypes) {
		placeType = ctx.Config.PlaceTypes[a.PlaceType].Name
	}
	return trace.TransmissionRecord{
		Step:                          ctx.Step,
		InfectorID:                    int64(p.ID),
		InfectorSymptomatic:           p.isSymptomatic(ctx.Step),
		StepExposure:                  p.timeInfected,
		StepSymptoms:                  p.trajectory.SymptomOnset,
		StepRecover:                   p.trajectory.IllnessDuration,
		InfectorAsymptomatic:          p.trajectory.Asymptomatic,
		InfectorAffiliation:           p.affiliation.Kind(),
		CompSymptomsReport:            p.compSymptomsReport,
		CompQuarantineWhenSymptomatic: p.compQuarantineWhenSymptomatic,
		ComplianceMask:                p.compMask,
		ComplianceIsolating:           p.compIsolating,
		IsolatingBecauseOfSymptoms:    p.isolatingForSymptoms,
		IsolatingBecauseOfTracing:     p.isolatingForTracing,
		CompIsolateWhenNotified:       p.compIsolateWhenNotified,
		CompPhysicalDistancing:        p.compPhysicalDistancing,
		ContactRate:                   p.ContactRate,
		ProbHostsEvent:                p.probHostsEvent,
		ProbAttendsEvent:              p.probAttendsEvent,
		InfectorMask:                  a.InfectorMask.String(),
		PlaceType:                     placeType,
		PlaceID:                       int64(a.Place),
		NewlyInfectedID:               int64(a.NewlyInfected),
		NewlyInfectedDistancing:       a.NewlyInfectedPhysicalDistancing,
		NewlyInfectedMask:             a.NewlyInfectedMask.String(),
	}
}

func (p *Person) reportSymptoms(ctx *StepContext) {
	pReport := p.rng.Float64()
	if p.isSymptomatic(ctx.Step) && !p.tested && pReport < p.compSymptomsReport {
		ctx.Out.Send(OrchestratorID, SymptomaticMsg{})
	}
	pIsolate := p.rng.Float64()
	if p.isFirstTimeSymptomatic(ctx.Step) && pIsolate < p.compQuarantineWhenSymptomatic {
		p.isolatingForSymptoms = true
	}
}

// === Orders, tests and interviews ===

// HandleOrders applies quarantine and release orders, takes an ordered
// test and, when asked for an interview, requests occupancy from every
// place in the visit history.
func (p *Person) HandleOrders(ctx *StepContext) error {
	if !p.active() {
		return nil
	}
	p.startQuarantineIfOrdered(ctx)
	p.stopQuarantineIfOrdered(ctx)
	p.takeTestIfOrdered(ctx)
	if Has[StartInterviewMsg](ctx.Inbox) {
		for _, place := range p.visitedPlaces() {
			ctx.Out.Send(place, OccupancyRequestMsg{})
		}
	}
	return nil
}

// TakeTest administers an ordered test.
func (p *Person) TakeTest(ctx *StepContext) error {
	if !p.active() {
		return nil
	}
	p.takeTestIfOrdered(ctx)
	return nil
}

func (p *Person) startQuarantineIfOrdered(ctx *StepContext) {
	orders := Receive[QuarantineOrderMsg](ctx.Inbox)
	if len(orders) == 0 {
		return
	}
	var exposure *int
	for _, o := range orders {
		if o.Msg.ExposureStep != nil && (exposure == nil || *o.Msg.ExposureStep > *exposure) {
			exposure = o.Msg.ExposureStep
		}
	}
	if p.rng.Float64() < p.compIsolateWhenNotified {
		p.isolatingForTracing = true
		p.tracingStartedAt = ctx.Step
		if exposure != nil {
			p.tracingStartedAt = *exposure
		}
	}
}

func (p *Person) stopQuarantineIfOrdered(ctx *StepContext) {
	if Has[QuarantineReleaseMsg](ctx.Inbox) {
		p.isolatingForTracing = false
		p.tracingStartedAt = math.MinInt
	}
}

func (p *Person) takeTestIfOrdered(ctx *StepContext) {
	if p.tested || !Has[TestOrderMsg](ctx.Inbox) {
		return
	}
	ctx.Out.Send(OrchestratorID, TestSampleMsg{
		Status:   p.Status,
		Accuracy: TestAccuracy(ctx.Config, p.Status, p.trajectory, p.timeInfected, ctx.Step),
	})
	p.tested = true
}

func (p *Person) visitedPlaces() []AgentID {
	seen := make(map[AgentID]bool)
	var out []AgentID
	for _, v := range p.placeHistory.Entries() {
		for _, id := range v.Places {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SendInterviewResults turns the received occupancy histories into one
// recalled contact set per step of the lookback window, oldest first, and
// sends them to the orchestrator. Only occupants of places the person was
// at during that step count as contacts.
func (p *Person) SendInterviewResults(ctx *StepContext) error {
	if !p.active() {
		return nil
	}
	msgs := Receive[OccupancyMsg](ctx.Inbox)
	if len(msgs) == 0 {
		return nil
	}
	window := ctx.Config.LookbackSteps()
	first := ctx.Step - window + 1
	if first < 0 {
		first = 0
	}
	visited := make(map[int]map[AgentID]bool)
	for _, v := range p.placeHistory.Entries() {
		set := make(map[AgentID]bool, len(v.Places))
		for _, id := range v.Places {
			set[id] = true
		}
		visited[v.Step] = set
	}
	byStep := make(map[int]map[AgentID]bool)
	for _, m := range msgs {
		for _, entry := range m.Msg.History {
			if !visited[entry.Step][m.From] {
				continue
			}
			if byStep[entry.Step] == nil {
				byStep[entry.Step] = make(map[AgentID]bool)
			}
			for _, id := range entry.Occupants {
				if id != p.ID {
					byStep[entry.Step][id] = true
				}
			}
		}
	}
	recall := ctx.Config.Tracing.InterviewRecall
	contacts := make([][]AgentID, 0, ctx.Step-first+1)
	for s := first; s <= ctx.Step; s++ {
		ids := make([]AgentID, 0, len(byStep[s]))
		for id := range byStep[s] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		shuffleIDs(p.rng, ids)
		n := int(math.RoundToEven(recall * float64(len(ids))))
		recalled := ids[:n]
		sort.Slice(recalled, func(i, j int) bool { return recalled[i] < recalled[j] })
		contacts = append(contacts, recalled)
	}
	ctx.Out.Send(OrchestratorID, InterviewResultsMsg{Contacts: contacts})
	return nil
}

// === End of step ===

// EndOfStep resolves death or recovery, draws external and other-illness
// infections and reports the resulting state to the orchestrator.
func (p *Person) EndOfStep(ctx *StepContext) error {
	if !p.active() {
		return nil
	}
	cfg := ctx.Config
	if p.Status == Infected && p.isSymptomatic(ctx.Step) && ctx.Step < p.trajectory.IllnessDuration {
		prob, err := DeathProbability(cfg, p.Age, p.trajectory)
		if err != nil {
			return fmt.Errorf("person %d death check: %w", p.ID, err)
		}
		if p.rng.Float64() < prob {
			p.die(ctx)
		}
	} else if p.Status == Infected && p.trajectory.IllnessDuration == ctx.Step {
		p.Status = Recovered
		p.isolatingForSymptoms = false
	}
	if p.otherIllness && p.otherIllnessRecovery == ctx.Step {
		p.isolatingForSymptoms = false
		p.otherIllness = false
	}

	if p.Status == Susceptible && p.rng.Float64() < cfg.Transmission.BaseExternalInfectionRate {
		if err := p.setInfected(ctx); err != nil {
			return err
		}
	}
	if p.Status != Dead && p.rng.Float64() < cfg.Transmission.OtherIllnessInfectionRate {
		p.otherIllness = true
		p.otherIllnessStarted = ctx.Step
		d := cfg.Transmission.OtherIllnessDuration
		p.otherIllnessRecovery = ctx.Step + cfg.StepsPerDay*Discrete(p.rng, d.Start, d.End)
	}

	ctx.Out.Send(OrchestratorID, StatusReportMsg{
		Status:            p.Status,
		Isolating:         p.Isolating(),
		NumPeopleInfected: p.numPeopleInfected,
		NewlyInfected:     p.infectedThisStep,
	})
	p.infectedThisStep = false
	return nil
}

func (p *Person) die(ctx *StepContext) {
	p.Status = Dead
	logrus.Tracef("step %d: person %d died", ctx.Step, p.ID)
	for _, friend := range ctx.Links.Neighbors(p.ID) {
		ctx.Out.Send(friend, RIPMsg{})
	}
	ctx.Out.SeverLinks()
	ctx.Out.Send(OrchestratorID, RIPMsg{})
}

// RandomInfectionAndReset applies a randomly injected infection and clears
// the per-step tested flag.
func (p *Person) RandomInfectionAndReset(ctx *StepContext) error {
	if !p.active() {
		return nil
	}
	for _, m := range Receive[RandomInfectionMsg](ctx.Inbox) {
		if p.Status == Susceptible && p.rng.Float64() < m.Msg.Probability {
			if err := p.setInfected(ctx); err != nil {
				return err
			}
		}
	}
	p.tested = false
	return nil
}

func sortedRefs(refs []PlaceRef) []PlaceRef {
	out := make([]PlaceRef, len(refs))
	copy(out, refs)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
