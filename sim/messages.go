package sim

import (
	"sort"

	"github.com/vivid-sim/vivid-sim/sim/trace"
)

// Envelope is one message in flight between two agents.
type Envelope struct {
	From AgentID
	To   AgentID
	Body any
}

// Inbox holds the messages delivered to one agent for the current action,
// ordered by sender id and, for one sender, by send order.
type Inbox []Envelope

// Received is a typed view of one delivered message.
type Received[T any] struct {
	From AgentID
	Msg  T
}

// Receive returns every message of type T in the inbox, in delivery order.
func Receive[T any](in Inbox) []Received[T] {
	var out []Received[T]
	for _, e := range in {
		if m, ok := e.Body.(T); ok {
			out = append(out, Received[T]{From: e.From, Msg: m})
		}
	}
	return out
}

// Has reports whether at least one message of type T was delivered.
func Has[T any](in Inbox) bool {
	for _, e := range in {
		if _, ok := e.Body.(T); ok {
			return true
		}
	}
	return false
}

// Outbox collects what one agent sends during one action, plus structural
// requests the engine applies once the action has finished.
type Outbox struct {
	from   AgentID
	sent   []Envelope
	spawns []PlaceSpec
	links  [][2]AgentID
	sever  bool
}

func newOutbox(from AgentID) *Outbox {
	return &Outbox{from: from}
}

// Send queues body for delivery to the recipient at the next action.
func (o *Outbox) Send(to AgentID, body any) {
	o.sent = append(o.sent, Envelope{From: o.from, To: to, Body: body})
}

// Spawn asks the engine to create a place agent from spec.
func (o *Outbox) Spawn(spec PlaceSpec) {
	o.spawns = append(o.spawns, spec)
}

// Link asks the engine to add an undirected social link.
func (o *Outbox) Link(a, b AgentID) {
	o.links = append(o.links, [2]AgentID{a, b})
}

// SeverLinks asks the engine to drop every social link of the sender.
func (o *Outbox) SeverLinks() {
	o.sever = true
}

// Sent returns the queued envelopes.
func (o *Outbox) Sent() []Envelope {
	return o.sent
}

// deliver groups envelopes by recipient with each inbox stable-sorted by
// sender, so the result does not depend on the order outboxes were merged.
func deliver(envs []Envelope) map[AgentID]Inbox {
	boxes := make(map[AgentID]Inbox)
	for _, e := range envs {
		boxes[e.To] = append(boxes[e.To], e)
	}
	for id, in := range boxes {
		sort.SliceStable(in, func(i, j int) bool { return in[i].From < in[j].From })
		boxes[id] = in
	}
	return boxes
}

// === Bootstrap messages (step 0 only) ===

// RegisterMsg is sent by every person and place agent to the orchestrator
// at step 0.
type RegisterMsg struct {
	Kind AgentKind
}

// AssignmentMsg carries a person's affiliation, schedule and isolation
// places from the population initializer.
type AssignmentMsg struct {
	Assignment PersonAssignment
}

// RosterMsg streams one place of the roster to the bootstrap place agent.
type RosterMsg struct {
	Place PlaceSpec
}

// === Per-step messages ===

// SuppressionReportMsg is a person's current suppression state. Eligible
// is false for active persons that may not be suppressed: anyone no longer
// susceptible.
type SuppressionReportMsg struct {
	Suppressed bool
	Eligible   bool
}

// SuppressionMsg reassigns a person's suppression state.
type SuppressionMsg struct {
	Suppress bool
}

// VaccineRequestMsg is sent by unvaccinated active persons.
type VaccineRequestMsg struct{}

// VaccinatedMsg marks the recipient vaccinated.
type VaccinatedMsg struct{}

// TestMultiplierMsg reports a person's test-selection weight.
type TestMultiplierMsg struct {
	Multiplier float64
}

// EventInviteMsg invites the recipient to an informal gathering.
type EventInviteMsg struct {
	Place AgentID
}

// PresenceMsg announces arrival at a place.
type PresenceMsg struct {
	Info TransmissibilityInfo
}

// InfectionMsg tells a person they were infected this step.
type InfectionMsg struct{}

// InfectedSomeoneMsg tells an infector a transmission happened. Audit is
// only populated when transmission output is enabled.
type InfectedSomeoneMsg struct {
	Audit *TransmissionAudit
}

// TransmissionAudit is the place-side half of a transmission record.
type TransmissionAudit struct {
	NewlyInfected                   AgentID
	NewlyInfectedMask               MaskType
	NewlyInfectedPhysicalDistancing float64
	InfectorMask                    MaskType
	Place                           AgentID
	PlaceType                       int
}

// PlaceStatsMsg is a place's per-step aggregate infection report.
type PlaceStatsMsg struct {
	PlaceType          int
	NumGotInfected     int
	NumStartedInfected int
	TotalInPlace       int
}

// SymptomaticMsg reports symptoms to the orchestrator.
type SymptomaticMsg struct{}

// QuarantineOrderMsg orders a person into contact-tracing quarantine.
// ExposureStep is nil when the order does not stem from a traced contact.
type QuarantineOrderMsg struct {
	ExposureStep *int
}

// QuarantineReleaseMsg lifts a contact-tracing quarantine.
type QuarantineReleaseMsg struct{}

// TestOrderMsg asks a person to take a test.
type TestOrderMsg struct{}

// TestSampleMsg is a person's test sample: the true status and the
// probability the test reads it correctly.
type TestSampleMsg struct {
	Status   InfectionStatus
	Accuracy float64
}

// StartInterviewMsg asks a person for their recent contacts.
type StartInterviewMsg struct{}

// OccupancyRequestMsg asks a place for its occupancy history.
type OccupancyRequestMsg struct{}

// OccupancyEntry is the sorted, deduplicated set of occupants of a place at
// one step.
type OccupancyEntry struct {
	Step      int
	Occupants []AgentID
}

// OccupancyMsg is a place's occupancy history, oldest step first.
type OccupancyMsg struct {
	History []OccupancyEntry
}

// InterviewResultsMsg lists recalled contacts per step, oldest first.
type InterviewResultsMsg struct {
	Contacts [][]AgentID
}

// RIPMsg announces a death.
type RIPMsg struct{}

// TransmissionReportMsg carries one audit row to the orchestrator.
type TransmissionReportMsg struct {
	Record trace.TransmissionRecord
}

// StatusReportMsg is a person's end-of-step state for statistics.
type StatusReportMsg struct {
	Status            InfectionStatus
	Isolating         bool
	NumPeopleInfected int
	NewlyInfected     bool
}

// RandomInfectionMsg carries the per-person chance of a random infection.
type RandomInfectionMsg struct {
	Probability float64
}
