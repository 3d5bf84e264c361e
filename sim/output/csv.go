package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vivid-sim/vivid-sim/sim"
	"github.com/vivid-sim/vivid-sim/sim/trace"
)

// CSVSink streams statistics and transmission rows to CSV writers. Either
// writer may be nil.
type CSVSink struct {
	runID         string
	stats         *csv.Writer
	transmissions *csv.Writer
	closers       []io.Closer
	wroteHeaders  bool
}

// NewCSVSink writes to the given writers.
func NewCSVSink(runID string, stats, transmissions io.Writer) *CSVSink {
	s := &CSVSink{runID: runID}
	if stats != nil {
		s.stats = csv.NewWriter(stats)
	}
	if transmissions != nil {
		s.transmissions = csv.NewWriter(transmissions)
	}
	return s
}

// CreateCSVSink creates the named files. An empty path skips that output.
func CreateCSVSink(runID, statsPath, transmissionsPath string) (*CSVSink, error) {
	var stats, transmissions io.Writer
	var closers []io.Closer
	if statsPath != "" {
		f, err := os.Create(statsPath)
		if err != nil {
			return nil, fmt.Errorf("create statistics file: %w", err)
		}
		stats = f
		closers = append(closers, f)
	}
	if transmissionsPath != "" {
		f, err := os.Create(transmissionsPath)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, fmt.Errorf("create transmissions file: %w", err)
		}
		transmissions = f
		closers = append(closers, f)
	}
	s := NewCSVSink(runID, stats, transmissions)
	s.closers = closers
	return s, nil
}

// ObserveStep implements sim.StepObserver.
func (s *CSVSink) ObserveStep(report sim.StepReport) error {
	if !s.wroteHeaders {
		if err := s.writeHeaders(); err != nil {
			return err
		}
		s.wroteHeaders = true
	}
	if s.stats != nil {
		if err := s.stats.Write(StatisticsRow(s.runID, report.Statistics)); err != nil {
			return fmt.Errorf("write statistics row: %w", err)
		}
		s.stats.Flush()
		if err := s.stats.Error(); err != nil {
			return fmt.Errorf("flush statistics: %w", err)
		}
	}
	if s.transmissions != nil && len(report.Transmissions) > 0 {
		for _, r := range report.Transmissions {
			if err := s.transmissions.Write(append([]string{s.runID}, r.Row()...)); err != nil {
				return fmt.Errorf("write transmission row: %w", err)
			}
		}
		s.transmissions.Flush()
		if err := s.transmissions.Error(); err != nil {
			return fmt.Errorf("flush transmissions: %w", err)
		}
	}
	return nil
}

func (s *CSVSink) writeHeaders() error {
	if s.stats != nil {
		if err := s.stats.Write(StatisticsHeader); err != nil {
			return fmt.Errorf("write statistics header: %w", err)
		}
	}
	if s.transmissions != nil {
		if err := s.transmissions.Write(append([]string{"run_id"}, trace.Header...)); err != nil {
			return fmt.Errorf("write transmissions header: %w", err)
		}
	}
	return nil
}

// Close flushes the writers and closes any files the sink created. Buffered
// write errors and close errors are all returned.
func (s *CSVSink) Close() error {
	var errs []error
	if !s.wroteHeaders {
		if err := s.writeHeaders(); err != nil {
			errs = append(errs, err)
		}
		s.wroteHeaders = true
	}
	for _, w := range []*csv.Writer{s.stats, s.transmissions} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil {
			errs = append(errs, fmt.Errorf("flush csv: %w", err))
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
