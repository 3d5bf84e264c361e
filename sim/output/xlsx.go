package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/vivid-sim/vivid-sim/sim"
	"github.com/vivid-sim/vivid-sim/sim/trace"
)

const (
	sheetStatistics    = "statistics"
	sheetTransmissions = "transmissions"
	sheetBuildings     = "buildings"
)

// XLSXSink collects results into a workbook saved on Close.
type XLSXSink struct {
	path    string
	runID   string
	file    *excelize.File
	statRow int
	txRow   int
}

// NewXLSXSink creates a workbook with statistics and transmissions sheets.
func NewXLSXSink(runID, path string) (*XLSXSink, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetStatistics); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetTransmissions); err != nil {
		return nil, fmt.Errorf("create %s sheet: %w", sheetTransmissions, err)
	}
	s := &XLSXSink{path: path, runID: runID, file: f, statRow: 1, txRow: 1}
	if err := s.writeRow(sheetStatistics, &s.statRow, toCells(StatisticsHeader)); err != nil {
		return nil, err
	}
	if err := s.writeRow(sheetTransmissions, &s.txRow, toCells(append([]string{"run_id"}, trace.Header...))); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *XLSXSink) writeRow(sheet string, row *int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, *row)
	if err != nil {
		return err
	}
	if err := s.file.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, *row, err)
	}
	*row++
	return nil
}

// ObserveStep implements sim.StepObserver.
func (s *XLSXSink) ObserveStep(report sim.StepReport) error {
	st := report.Statistics
	row := []any{
		s.runID, st.Step, st.Susceptible, st.Infected, st.QuarantinedInfected, st.QuarantinedSusceptible,
		st.Recovered, st.Dead, st.NewInfections, st.DetectedCases, st.TestsReturned, st.TestPositivity,
	}
	if err := s.writeRow(sheetStatistics, &s.statRow, row); err != nil {
		return err
	}
	for _, r := range report.Transmissions {
		if err := s.writeRow(sheetTransmissions, &s.txRow, toCells(append([]string{s.runID}, r.Row()...))); err != nil {
			return err
		}
	}
	return nil
}

// WriteBuildings adds the end-of-run per place type counters.
func (s *XLSXSink) WriteBuildings(buildings []sim.BuildingStats) error {
	if _, err := s.file.NewSheet(sheetBuildings); err != nil {
		return fmt.Errorf("create %s sheet: %w", sheetBuildings, err)
	}
	row := 1
	if err := s.writeRow(sheetBuildings, &row, toCells(BuildingHeader)); err != nil {
		return err
	}
	for _, b := range buildings {
		cells := []any{b.Name, b.TotalInfected, b.TotalVisitors, b.MeanStepRatio(), b.StepsExcluded, b.MeanDayRatio(), b.DaysExcluded}
		if err := s.writeRow(sheetBuildings, &row, cells); err != nil {
			return err
		}
	}
	return nil
}

// Close saves the workbook.
func (s *XLSXSink) Close() error {
	defer s.file.Close()
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
