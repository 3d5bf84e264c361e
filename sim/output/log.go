package output

import (
	"github.com/sirupsen/logrus"

	"github.com/vivid-sim/vivid-sim/sim"
)

// LogSink logs a statistics line every Every steps.
type LogSink struct {
	Every int
}

// ObserveStep implements sim.StepObserver.
func (l LogSink) ObserveStep(report sim.StepReport) error {
	every := l.Every
	if every <= 0 {
		every = 1
	}
	if report.Step%every != 0 {
		return nil
	}
	s := report.Statistics
	logrus.WithFields(logrus.Fields{
		"step":        s.Step,
		"susceptible": s.Susceptible,
		"infected":    s.Infected,
		"recovered":   s.Recovered,
		"dead":        s.Dead,
		"new":         s.NewInfections,
		"detected":    s.DetectedCases,
		"positivity":  s.TestPositivity,
	}).Info("step complete")
	return nil
}

// Close implements Sink.
func (LogSink) Close() error { return nil }
