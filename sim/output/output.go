// Package output writes per-step simulation results to CSV, XLSX and the
// log.
package output

import (
	"errors"
	"strconv"

	"github.com/vivid-sim/vivid-sim/sim"
)

// Sink is a StepObserver that owns resources released by Close.
type Sink interface {
	sim.StepObserver
	Close() error
}

// StatisticsHeader is the column list matching StatisticsRow.
var StatisticsHeader = []string{
	"run_id", "step", "susceptible", "infected", "quarantined_infected", "quarantined_susceptible",
	"recovered", "dead", "new_infections", "detected_cases", "tests_returned", "test_positivity",
}

// StatisticsRow renders one step's statistics in StatisticsHeader order.
func StatisticsRow(runID string, s sim.Statistics) []string {
	return []string{
		runID,
		strconv.Itoa(s.Step),
		strconv.Itoa(s.Susceptible),
		strconv.Itoa(s.Infected),
		strconv.Itoa(s.QuarantinedInfected),
		strconv.Itoa(s.QuarantinedSusceptible),
		strconv.Itoa(s.Recovered),
		strconv.Itoa(s.Dead),
		strconv.Itoa(s.NewInfections),
		strconv.Itoa(s.DetectedCases),
		strconv.Itoa(s.TestsReturned),
		strconv.FormatFloat(s.TestPositivity, 'f', 4, 64),
	}
}

// BuildingHeader is the column list matching BuildingRow.
var BuildingHeader = []string{
	"place_type", "total_infected", "total_visitors", "mean_step_ratio", "steps_excluded",
	"mean_day_ratio", "days_excluded",
}

// BuildingRow renders one place type's counters in BuildingHeader order.
func BuildingRow(b sim.BuildingStats) []string {
	return []string{
		b.Name,
		strconv.Itoa(b.TotalInfected),
		strconv.Itoa(b.TotalVisitors),
		strconv.FormatFloat(b.MeanStepRatio(), 'f', 6, 64),
		strconv.Itoa(b.StepsExcluded),
		strconv.FormatFloat(b.MeanDayRatio(), 'f', 6, 64),
		strconv.Itoa(b.DaysExcluded),
	}
}

// Multi fans every report out to each sink in order.
type Multi []Sink

// ObserveStep implements sim.StepObserver. The first failing sink stops
// the fan-out.
func (m Multi) ObserveStep(report sim.StepReport) error {
	for _, s := range m {
		if err := s.ObserveStep(report); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
