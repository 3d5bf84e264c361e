package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vivid-sim/vivid-sim/sim/internal/testutil"
)

func TestBuildingStats_StepAndDayRatios(t *testing.T) {
	// GIVEN a place type observed over one two-step day
	b := BuildingStats{Name: "class"}
	const stepsPerDay = 2

	// WHEN step 0 has 2 infected visitors causing 1 infection
	b.resetWindows(0, stepsPerDay)
	b.add(PlaceStatsMsg{NumGotInfected: 1, NumStartedInfected: 2, TotalInPlace: 10})
	b.updateRatios(0, stepsPerDay)

	// AND step 1 has visitors but nobody infected
	b.resetWindows(1, stepsPerDay)
	b.add(PlaceStatsMsg{NumGotInfected: 0, NumStartedInfected: 0, TotalInPlace: 5})
	b.updateRatios(1, stepsPerDay)

	// THEN the empty step is excluded from the step mean
	assert.Equal(t, 1, b.TotalInfected)
	assert.Equal(t, 15, b.TotalVisitors)
	assert.Equal(t, 2, b.StepsObserved)
	assert.Equal(t, 1, b.StepsExcluded)
	testutil.AssertFloat64Equal(t, "step ratio", 0.5, b.MeanStepRatio(), 1e-12)

	// AND the day window spans both steps
	assert.Equal(t, 1, b.DaysObserved)
	assert.Equal(t, 0, b.DaysExcluded)
	testutil.AssertFloat64Equal(t, "day ratio", 0.5, b.MeanDayRatio(), 1e-12)
}

func TestBuildingStats_UnvisitedIsExcluded(t *testing.T) {
	b := BuildingStats{}
	b.resetWindows(0, 1)
	b.updateRatios(0, 1)

	assert.Equal(t, 1, b.StepsExcluded)
	assert.Equal(t, 1, b.DaysExcluded)
	assert.Equal(t, 0.0, b.MeanStepRatio())
	assert.Equal(t, 0.0, b.MeanDayRatio())
}
