package sim

// Statistics is the per-step aggregate record handed to output sinks.
type Statistics struct {
	Step                   int
	Susceptible            int
	Infected               int
	QuarantinedInfected    int
	QuarantinedSusceptible int
	Recovered              int
	Dead                   int
	NewInfections          int
	DetectedCases          int
	TestsReturned          int
	TestPositivity         float64 // percentage of returned tests that were positive
}

// BuildingStats accumulates infection counts for one place type.
type BuildingStats struct {
	Name          string
	TotalInfected int
	TotalVisitors int
	StepRatioSum  float64
	StepsExcluded int
	DayRatioSum   float64
	DaysExcluded  int
	StepsObserved int
	DaysObserved  int

	startedStep, infectedStep int
	visitedStep               bool
	startedDay, infectedDay   int
	visitedDay                bool
}

// MeanStepRatio is the mean per-step ratio of new infections to infected
// visitors, over steps that were not excluded.
func (b BuildingStats) MeanStepRatio() float64 {
	n := b.StepsObserved - b.StepsExcluded
	if n <= 0 {
		return 0
	}
	return b.StepRatioSum / float64(n)
}

// MeanDayRatio is MeanStepRatio at day granularity.
func (b BuildingStats) MeanDayRatio() float64 {
	n := b.DaysObserved - b.DaysExcluded
	if n <= 0 {
		return 0
	}
	return b.DayRatioSum / float64(n)
}

func (b *BuildingStats) resetWindows(step, stepsPerDay int) {
	b.startedStep, b.infectedStep, b.visitedStep = 0, 0, false
	if step%stepsPerDay == 0 {
		b.startedDay, b.infectedDay, b.visitedDay = 0, 0, false
	}
}

func (b *BuildingStats) add(m PlaceStatsMsg) {
	b.TotalInfected += m.NumGotInfected
	b.TotalVisitors += m.TotalInPlace
	b.startedStep += m.NumStartedInfected
	b.startedDay += m.NumStartedInfected
	b.infectedStep += m.NumGotInfected
	b.infectedDay += m.NumGotInfected
	b.visitedStep, b.visitedDay = true, true
}

// updateRatios folds the step window into the running sums, and the day
// window on the last step of a day.
func (b *BuildingStats) updateRatios(step, stepsPerDay int) {
	b.StepsObserved++
	if b.startedStep == 0 || !b.visitedStep {
		b.StepsExcluded++
	}
	if b.startedStep != 0 {
		b.StepRatioSum += float64(b.infectedStep) / float64(b.startedStep)
	}
	if (step+1)%stepsPerDay != 0 {
		return
	}
	b.DaysObserved++
	if b.startedDay == 0 || !b.visitedDay {
		b.DaysExcluded++
	}
	if b.startedDay != 0 {
		b.DayRatioSum += float64(b.infectedDay) / float64(b.startedDay)
	}
}
