package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuarantineQueue_OrdersByReleaseThenAgent(t *testing.T) {
	// GIVEN entries scheduled out of order, two sharing a release step
	q := NewQuarantineQueue()
	q.Schedule(QuarantineInfo{Agent: 9, Until: 20})
	q.Schedule(QuarantineInfo{Agent: 4, Until: 10})
	q.Schedule(QuarantineInfo{Agent: 2, Until: 10})
	q.Schedule(QuarantineInfo{Agent: 7, Until: 15})

	// WHEN peeking
	head, ok := q.Peek()

	// THEN the earliest release with the lowest agent id is first
	require.True(t, ok)
	assert.Equal(t, QuarantineInfo{Agent: 2, Until: 10}, head)
	assert.Equal(t, 4, q.Len())
}

func TestQuarantineQueue_PopDue(t *testing.T) {
	q := NewQuarantineQueue()
	q.Schedule(QuarantineInfo{Agent: 1, Until: 5})
	q.Schedule(QuarantineInfo{Agent: 2, Until: 3})
	q.Schedule(QuarantineInfo{Agent: 3, Until: 8})

	// Nothing is due before the first release step
	assert.Empty(t, q.PopDue(2))

	// Release steps at or before the current step are popped, earliest first
	due := q.PopDue(5)
	assert.Equal(t, []QuarantineInfo{{Agent: 2, Until: 3}, {Agent: 1, Until: 5}}, due)
	assert.Equal(t, 1, q.Len())

	due = q.PopDue(100)
	assert.Equal(t, []QuarantineInfo{{Agent: 3, Until: 8}}, due)
	_, ok := q.Peek()
	assert.False(t, ok)
}

func TestQuarantineQueue_HeadIsAlwaysMinimum(t *testing.T) {
	// GIVEN many entries pushed in a scrambled order
	q := NewQuarantineQueue()
	for i := 0; i < 50; i++ {
		q.Schedule(QuarantineInfo{Agent: AgentID(i), Until: (i * 37) % 23})
	}

	// WHEN draining one step at a time
	prev := QuarantineInfo{Until: -1}
	for step := 0; step < 23; step++ {
		for _, info := range q.PopDue(step) {
			// THEN the drained sequence never goes backwards
			if info.Until == prev.Until {
				assert.Greater(t, info.Agent, prev.Agent)
			} else {
				assert.Greater(t, info.Until, prev.Until)
			}
			assert.LessOrEqual(t, info.Until, step)
			prev = info
		}
	}
	assert.Equal(t, 0, q.Len())
}
