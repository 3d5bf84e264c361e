package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallSimulator(t *testing.T, agents int, opts Options) *Simulator {
	t.Helper()
	cfg := quietConfig()
	cfg.Population.Agents = agents
	cfg.Population.ActiveAgents = agents
	cfg.Steps = 5
	s, err := NewSimulator(cfg, &fixedPopulation{}, opts)
	require.NoError(t, err)
	return s
}

type recordingObserver struct {
	reports []StepReport
	fail    error
}

func (r *recordingObserver) ObserveStep(report StepReport) error {
	r.reports = append(r.reports, report)
	return r.fail
}

func TestNewSimulator_Errors(t *testing.T) {
	cfg := quietConfig()
	_, err := NewSimulator(cfg, nil, Options{})
	assert.ErrorContains(t, err, "initializer")

	bad := quietConfig()
	bad.StepsPerDay = 0
	_, err = NewSimulator(bad, &fixedPopulation{}, Options{})
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestNewSimulator_AllocatesIDs(t *testing.T) {
	s := smallSimulator(t, 4, Options{})

	require.Len(t, s.Persons(), 4)
	for i, p := range s.Persons() {
		assert.Equal(t, AgentID(i+1), p.ID)
	}
	require.Len(t, s.Places(), 1)
	assert.Equal(t, AgentID(5), s.Places()[0].ID, "bootstrap place follows the last person")
	assert.Equal(t, OrchestratorID, s.Orchestrator().ID)
}

func TestRunAction_MessagesReachOnlyTheNextAction(t *testing.T) {
	// GIVEN agent 1 sending to agent 2
	s := smallSimulator(t, 3, Options{Workers: 1})
	ctx := context.Background()
	send := []agentAction{{id: 1, run: func(c *StepContext) error {
		c.Out.Send(2, RIPMsg{})
		return nil
	}}}
	var seen [][]Envelope
	observe := []agentAction{{id: 2, run: func(c *StepContext) error {
		seen = append(seen, c.Inbox)
		return nil
	}}}

	// WHEN the next two actions run agent 2
	require.NoError(t, s.runAction(ctx, "send", send))
	require.NoError(t, s.runAction(ctx, "first", observe))
	require.NoError(t, s.runAction(ctx, "second", observe))

	// THEN the message arrives in the first and is gone in the second
	require.Len(t, seen, 2)
	require.Len(t, seen[0], 1)
	assert.Equal(t, AgentID(1), seen[0][0].From)
	assert.Empty(t, seen[1])
}

func TestRunAction_UndeliveredMessagesAreDropped(t *testing.T) {
	s := smallSimulator(t, 3, Options{Workers: 1})
	ctx := context.Background()
	var inbox Inbox
	require.NoError(t, s.runAction(ctx, "send", []agentAction{{id: 1, run: func(c *StepContext) error {
		c.Out.Send(2, RIPMsg{})
		return nil
	}}}))
	// Agent 2 is not part of this action
	require.NoError(t, s.runAction(ctx, "skip", []agentAction{{id: 3, run: func(*StepContext) error { return nil }}}))
	require.NoError(t, s.runAction(ctx, "late", []agentAction{{id: 2, run: func(c *StepContext) error {
		inbox = c.Inbox
		return nil
	}}}))

	assert.Empty(t, inbox)
}

func TestRunAction_WrapsAgentErrors(t *testing.T) {
	s := smallSimulator(t, 1, Options{})
	boom := errors.New("boom")

	err := s.runAction(context.Background(), "explode", []agentAction{{id: 1, run: func(*StepContext) error { return boom }}})

	assert.True(t, errors.Is(err, boom))
	assert.ErrorContains(t, err, "step 0 action explode")
}

func TestStep_BootstrapBuildsRosterAndLinks(t *testing.T) {
	// GIVEN a fresh simulator with three persons
	s := smallSimulator(t, 3, Options{})

	// WHEN step 0 runs
	report, err := s.Step(context.Background())
	require.NoError(t, err)

	// THEN one place per roster entry exists, in id order, starting with
	// the bootstrap place
	assert.Equal(t, 0, report.Step)
	assert.Equal(t, 1, s.CurrentStep())
	require.Len(t, s.Places(), 3)
	for i, pl := range s.Places() {
		assert.Equal(t, AgentID(4+i), pl.ID)
		assert.Equal(t, pl.ID, pl.Spec().ID)
	}
	// AND the initializer's links are in the graph
	assert.Equal(t, []AgentID{1, 3}, s.Links().Neighbors(2))
	// AND every person reported its state
	st := report.Statistics
	assert.Equal(t, 3, st.Susceptible+st.Infected+st.Recovered+st.Dead)
}

func TestRun_ReportsEveryStep(t *testing.T) {
	s := smallSimulator(t, 3, Options{})
	obs := &recordingObserver{}

	require.NoError(t, s.Run(context.Background(), obs))

	require.Len(t, obs.reports, s.Config().Steps)
	for i, r := range obs.reports {
		assert.Equal(t, i, r.Step)
	}
	assert.Equal(t, s.Config().Steps, s.CurrentStep())
}

func TestRun_ObserverErrorStopsTheRun(t *testing.T) {
	s := smallSimulator(t, 3, Options{})
	fail := errors.New("disk full")

	err := s.Run(context.Background(), &recordingObserver{fail: fail})

	assert.True(t, errors.Is(err, fail))
	assert.Equal(t, 1, s.CurrentStep())
}

func TestRun_CancelledContext(t *testing.T) {
	s := smallSimulator(t, 3, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, nil)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, s.CurrentStep())
}
