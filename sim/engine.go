package sim

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vivid-sim/vivid-sim/sim/trace"
)

// TracerName is the OpenTelemetry instrumentation scope of the engine.
const TracerName = "github.com/vivid-sim/vivid-sim/sim"

// StepReport is what the engine hands to observers after every step.
type StepReport struct {
	Step          int
	Statistics    Statistics
	Transmissions []trace.TransmissionRecord
}

// StepObserver receives one report per completed step.
type StepObserver interface {
	ObserveStep(report StepReport) error
}

// Options configures a Simulator beyond its scenario.
type Options struct {
	// Workers bounds the goroutines running one action. Zero means
	// GOMAXPROCS; 1 runs every action serially.
	Workers  int
	Selector TestSelector
	// Trace collects transmission records for the end-of-run summary.
	// Nil disables collection.
	Trace *trace.SimulationTrace
}

// agentAction binds one agent to the function it runs in an action.
type agentAction struct {
	id  AgentID
	run func(*StepContext) error
}

// Simulator is the lock-step engine. It owns every agent, the social graph
// and the messages in flight between two actions.
type Simulator struct {
	cfg     *Config
	rng     *PartitionedRNG
	workers int
	trace   *trace.SimulationTrace
	tracer  oteltrace.Tracer

	orchestrator *Orchestrator
	persons      []*Person
	places       []*Place
	links        *Graph

	pending []Envelope
	step    int
}

// NewSimulator creates persons 1..N, the bootstrap place N+1 and the
// orchestrator. Places beyond the bootstrap place are spawned at step 0.
func NewSimulator(cfg *Config, init PopulationInitializer, opts Options) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if init == nil {
		return nil, fmt.Errorf("population initializer is nil")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	s := &Simulator{
		cfg:     cfg,
		rng:     rng,
		workers: workers,
		trace:   opts.Trace,
		tracer:  otel.Tracer(TracerName),
		links:   NewGraph(),
	}
	s.orchestrator = NewOrchestrator(rng.ForSubsystem(SubsystemOrchestrator), rng.ForSubsystem(SubsystemPopulation), init, opts.Selector)
	n := cfg.Population.Agents
	s.persons = make([]*Person, n)
	for i := range s.persons {
		id := AgentID(i + 1)
		s.persons[i] = NewPerson(id, rng.ForSubsystem(SubsystemPerson(id)))
	}
	bootstrap := AgentID(n + 1)
	s.places = []*Place{NewPlace(bootstrap, rng.ForSubsystem(SubsystemPlace(bootstrap)))}
	return s, nil
}

// Config returns the scenario the simulator runs.
func (s *Simulator) Config() *Config { return s.cfg }

// CurrentStep is the index of the next step to run.
func (s *Simulator) CurrentStep() int { return s.step }

// Orchestrator exposes the orchestrator for inspection.
func (s *Simulator) Orchestrator() *Orchestrator { return s.orchestrator }

// Persons returns the persons in id order.
func (s *Simulator) Persons() []*Person { return s.persons }

// Places returns the place agents in id order.
func (s *Simulator) Places() []*Place { return s.places }

// Links returns the social graph.
func (s *Simulator) Links() *Graph { return s.links }

// Run executes every configured step, reporting each one to obs if non-nil.
func (s *Simulator) Run(ctx context.Context, obs StepObserver) error {
	logrus.Infof("simulation started: %d agents, %d steps, seed %d", s.cfg.Population.Agents, s.cfg.Steps, s.cfg.Seed)
	for s.step < s.cfg.Steps {
		report, err := s.Step(ctx)
		if err != nil {
			return err
		}
		if obs != nil {
			if err := obs.ObserveStep(report); err != nil {
				return fmt.Errorf("step %d observer: %w", report.Step, err)
			}
		}
	}
	if s.trace != nil {
		for id, n := range s.orchestrator.SecondaryInfections() {
			s.trace.SecondaryInfections[int64(id)] = n
		}
	}
	st := s.orchestrator.Statistics()
	logrus.Infof("simulation finished after %d steps: %d infected, %d recovered, %d dead", s.step, st.Infected, st.Recovered, st.Dead)
	return nil
}

// Step runs one full step, including the bootstrap at step 0.
func (s *Simulator) Step(ctx context.Context) (StepReport, error) {
	ctx, span := s.tracer.Start(ctx, "step", oteltrace.WithAttributes(attribute.Int("sim.step", s.step)))
	defer span.End()

	if s.step == 0 {
		if err := s.bootstrap(ctx); err != nil {
			span.RecordError(err)
			return StepReport{}, err
		}
	}
	for _, ph := range s.phases() {
		if err := s.runAction(ctx, ph.name, ph.actions()); err != nil {
			span.RecordError(err)
			return StepReport{}, err
		}
	}
	report := StepReport{
		Step:          s.step,
		Statistics:    s.orchestrator.Statistics(),
		Transmissions: s.orchestrator.DrainTransmissions(),
	}
	if s.trace.Enabled() {
		for _, r := range report.Transmissions {
			s.trace.RecordTransmission(r)
		}
	}
	span.SetAttributes(
		attribute.Int("sim.infected", report.Statistics.Infected),
		attribute.Int("sim.new_infections", report.Statistics.NewInfections),
	)
	logrus.Debugf("step %d: S=%d I=%d R=%d D=%d new=%d", s.step, report.Statistics.Susceptible,
		report.Statistics.Infected, report.Statistics.Recovered, report.Statistics.Dead, report.Statistics.NewInfections)
	s.step++
	return report, nil
}

func (s *Simulator) bootstrap(ctx context.Context) error {
	register := append(s.personActions((*Person).Register), s.placeActions((*Place).Register)...)
	if err := s.runAction(ctx, "register", register); err != nil {
		return err
	}
	if err := s.runAction(ctx, "initialize_population", s.orchestratorAction(s.orchestrator.InitializePopulation)); err != nil {
		return err
	}
	assign := append(s.personActions((*Person).ReceiveAssignment), s.placeActions((*Place).ReceiveRoster)...)
	return s.runAction(ctx, "receive_assignment", assign)
}

type phase struct {
	name    string
	actions func() []agentAction
}

// phases is the fixed per-step action order. Messages sent in one phase
// are visible only in the next.
func (s *Simulator) phases() []phase {
	o := s.orchestrator
	return []phase{
		{"report_suppression", func() []agentAction { return s.personActions((*Person).ReportSuppression) }},
		{"rebalance_suppression", func() []agentAction { return s.orchestratorAction(o.RebalanceSuppression) }},
		{"update_suppression", func() []agentAction { return s.personActions((*Person).UpdateSuppression) }},
		{"distribute_vaccines", func() []agentAction { return s.orchestratorAction(o.DistributeVaccines) }},
		{"host_event", func() []agentAction { return s.personActions((*Person).ReceiveVaccineAndHostEvent) }},
		{"move", func() []agentAction { return s.personActions((*Person).AttendEventAndMove) }},
		{"contacts", func() []agentAction { return s.placeActions((*Place).GenerateContactsAndInfect) }},
		{"infection", func() []agentAction {
			return append(s.orchestratorAction(o.ProcessPlaceStats), s.personActions((*Person).ReceiveInfectionAndReportSymptoms)...)
		}},
		{"symptomatic", func() []agentAction { return s.orchestratorAction(o.HandleSymptomaticAndResults) }},
		{"orders", func() []agentAction { return s.personActions((*Person).HandleOrders) }},
		{"occupancy", func() []agentAction {
			return append(s.orchestratorAction(o.ProcessTestSamples), s.placeActions((*Place).SendOccupancy)...)
		}},
		{"interview", func() []agentAction { return s.personActions((*Person).SendInterviewResults) }},
		{"trace_contacts", func() []agentAction { return s.orchestratorAction(o.ProcessInterviewContacts) }},
		{"contact_orders", func() []agentAction { return s.personActions((*Person).HandleOrders) }},
		{"random_testing", func() []agentAction { return s.orchestratorAction(o.ProcessTestSamplesAndRandomTesting) }},
		{"take_test", func() []agentAction { return s.personActions((*Person).TakeTest) }},
		{"test_samples", func() []agentAction { return s.orchestratorAction(o.ProcessTestSamples) }},
		{"end_of_step", func() []agentAction { return s.personActions((*Person).EndOfStep) }},
		{"statistics", func() []agentAction { return s.orchestratorAction(o.CollectStatistics) }},
		{"random_infection", func() []agentAction { return s.personActions((*Person).RandomInfectionAndReset) }},
	}
}

func (s *Simulator) orchestratorAction(f func(*StepContext) error) []agentAction {
	return []agentAction{{id: s.orchestrator.ID, run: f}}
}

func (s *Simulator) personActions(f func(*Person, *StepContext) error) []agentAction {
	out := make([]agentAction, len(s.persons))
	for i, p := range s.persons {
		p := p
		out[i] = agentAction{id: p.ID, run: func(ctx *StepContext) error { return f(p, ctx) }}
	}
	return out
}

func (s *Simulator) placeActions(f func(*Place, *StepContext) error) []agentAction {
	out := make([]agentAction, len(s.places))
	for i, pl := range s.places {
		pl := pl
		out[i] = agentAction{id: pl.ID, run: func(ctx *StepContext) error { return f(pl, ctx) }}
	}
	return out
}

// runAction delivers the messages sent during the previous action, runs
// every agent of this action and collects what they sent. Messages to
// agents that do not take part in this action are dropped. Structural
// requests (spawns, links, severed links) are applied in agent id order
// once every agent has finished.
func (s *Simulator) runAction(ctx context.Context, name string, actions []agentAction) error {
	_, span := s.tracer.Start(ctx, name, oteltrace.WithAttributes(
		attribute.Int("sim.step", s.step),
		attribute.Int("sim.agents", len(actions)),
	))
	defer span.End()

	inboxes := deliver(s.pending)
	s.pending = nil
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].id < actions[j].id })
	outboxes := make([]*Outbox, len(actions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, a := range actions {
		i, a := i, a
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := newOutbox(a.id)
			outboxes[i] = out
			return a.run(&StepContext{
				Step:   s.step,
				Config: s.cfg,
				Links:  s.links,
				Inbox:  inboxes[a.id],
				Out:    out,
			})
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("step %d action %s: %w", s.step, name, err)
	}

	spawned := 0
	for _, out := range outboxes {
		s.pending = append(s.pending, out.sent...)
		for _, spec := range out.spawns {
			s.places = append(s.places, newPlaceFromSpec(spec, s.rng.ForSubsystem(SubsystemPlace(spec.ID)), s.cfg))
			spawned++
		}
		for _, l := range out.links {
			s.links.Link(l[0], l[1])
		}
		if out.sever {
			s.links.Sever(out.from)
		}
	}
	if spawned > 0 {
		sort.SliceStable(s.places, func(i, j int) bool { return s.places[i].ID < s.places[j].ID })
		logrus.Debugf("step %d: spawned %d place agents", s.step, spawned)
	}
	logrus.Tracef("step %d action %s: %d agents, %d messages in flight", s.step, name, len(actions), len(s.pending))
	return nil
}
