package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vivid-sim/vivid-sim/sim"
	"github.com/vivid-sim/vivid-sim/sim/trace"
)

var (
	accent = lipgloss.Color("#5B8DEF")
	muted  = lipgloss.Color("#888888")
	border = lipgloss.Color("#444444")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(24)
	valueStyle = lipgloss.NewStyle().Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1)
)

func line(label string, value any) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(fmt.Sprint(value)))
}

// renderSummary formats the end-of-run statistics, building counters and
// secondary infection histogram.
func renderSummary(runID string, s *sim.Simulator, ts *trace.TraceSummary, elapsed time.Duration) string {
	st := s.Orchestrator().Statistics()
	outcome := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Run "+runID),
		line("steps", s.CurrentStep()),
		line("wall time", elapsed.Round(time.Millisecond)),
		line("susceptible", st.Susceptible),
		line("infected", st.Infected),
		line("recovered", st.Recovered),
		line("dead", st.Dead),
		line("detected cases", st.DetectedCases),
		line("tests returned", st.TestsReturned),
		line("test positivity (%)", fmt.Sprintf("%.2f", st.TestPositivity)),
	)

	rows := []string{titleStyle.Render("Infections by place type")}
	for _, b := range s.Orchestrator().Buildings() {
		rows = append(rows, line(b.Name, fmt.Sprintf("%d infected / %d visits, ratio %.4f per step, %.4f per day",
			b.TotalInfected, b.TotalVisitors, b.MeanStepRatio(), b.MeanDayRatio())))
	}
	buildings := lipgloss.JoinVertical(lipgloss.Left, rows...)

	spread := []string{
		titleStyle.Render("Secondary infections"),
		line("mean", fmt.Sprintf("%.3f", ts.MeanSecondary)),
		line("std dev", fmt.Sprintf("%.3f", ts.StdDevSecondary)),
	}
	if ts.TotalTransmissions > 0 {
		spread = append(spread,
			line("recorded transmissions", ts.TotalTransmissions),
			line("unique infectors", ts.UniqueInfectors))
		places := make([]string, 0, len(ts.ByPlaceType))
		for name := range ts.ByPlaceType {
			places = append(places, name)
		}
		sort.Strings(places)
		for _, name := range places {
			spread = append(spread, line("  at "+name, ts.ByPlaceType[name]))
		}
	}
	var hist []string
	for n, count := range ts.Histogram {
		if count > 0 {
			hist = append(hist, fmt.Sprintf("%d:%d", n, count))
		}
	}
	if len(hist) > 0 {
		spread = append(spread, line("histogram (n:persons)", strings.Join(hist, " ")))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		outcome, "", buildings, "", lipgloss.JoinVertical(lipgloss.Left, spread...)))
}
