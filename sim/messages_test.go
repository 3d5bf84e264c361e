package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// env builds one envelope for hand-assembled inboxes.
func env(from, to AgentID, body any) Envelope {
	return Envelope{From: from, To: to, Body: body}
}

// testContext returns the context agent self sees at step when envs are the
// messages in flight.
func testContext(step int, cfg *Config, self AgentID, envs ...Envelope) *StepContext {
	return &StepContext{
		Step:   step,
		Config: cfg,
		Links:  NewGraph(),
		Inbox:  deliver(envs)[self],
		Out:    newOutbox(self),
	}
}

// sentTo returns every message of type T queued for recipient to.
func sentTo[T any](out *Outbox, to AgentID) []T {
	var msgs []T
	for _, e := range out.Sent() {
		if e.To != to {
			continue
		}
		if m, ok := e.Body.(T); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// recipientsOf returns the recipients of every message of type T, in send
// order.
func recipientsOf[T any](out *Outbox) []AgentID {
	var ids []AgentID
	for _, e := range out.Sent() {
		if _, ok := e.Body.(T); ok {
			ids = append(ids, e.To)
		}
	}
	return ids
}

func TestDeliver_StableSortsBySender(t *testing.T) {
	// GIVEN messages to one agent sent in mixed sender order
	envs := []Envelope{
		env(5, 1, SymptomaticMsg{}),
		env(2, 1, TestMultiplierMsg{Multiplier: 1}),
		env(5, 1, RIPMsg{}),
		env(2, 1, TestMultiplierMsg{Multiplier: 2}),
		env(3, 9, RIPMsg{}),
	}

	// WHEN delivered
	boxes := deliver(envs)

	// THEN each inbox is ordered by sender, preserving send order per sender
	require.Len(t, boxes[1], 4)
	assert.Equal(t, []AgentID{2, 2, 5, 5}, []AgentID{boxes[1][0].From, boxes[1][1].From, boxes[1][2].From, boxes[1][3].From})
	assert.Equal(t, TestMultiplierMsg{Multiplier: 1}, boxes[1][0].Body)
	assert.Equal(t, TestMultiplierMsg{Multiplier: 2}, boxes[1][1].Body)
	assert.Equal(t, SymptomaticMsg{}, boxes[1][2].Body)
	assert.Len(t, boxes[9], 1)
}

func TestReceive_FiltersByType(t *testing.T) {
	in := Inbox{
		env(1, 0, SymptomaticMsg{}),
		env(2, 0, TestSampleMsg{Status: Infected, Accuracy: 1}),
		env(3, 0, SymptomaticMsg{}),
	}

	symptomatic := Receive[SymptomaticMsg](in)
	samples := Receive[TestSampleMsg](in)

	require.Len(t, symptomatic, 2)
	assert.Equal(t, AgentID(1), symptomatic[0].From)
	assert.Equal(t, AgentID(3), symptomatic[1].From)
	require.Len(t, samples, 1)
	assert.Equal(t, Infected, samples[0].Msg.Status)
	assert.True(t, Has[TestSampleMsg](in))
	assert.False(t, Has[RIPMsg](in))
}

func TestOutbox_CollectsStructuralRequests(t *testing.T) {
	out := newOutbox(4)
	out.Send(7, RIPMsg{})
	out.Spawn(PlaceSpec{ID: 12})
	out.Link(4, 8)
	out.SeverLinks()

	require.Len(t, out.Sent(), 1)
	assert.Equal(t, AgentID(4), out.Sent()[0].From)
	assert.Equal(t, AgentID(7), out.Sent()[0].To)
	assert.Len(t, out.spawns, 1)
	assert.Equal(t, [][2]AgentID{{4, 8}}, out.links)
	assert.True(t, out.sever)
}
