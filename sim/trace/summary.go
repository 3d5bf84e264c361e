package trace

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalTransmissions int
	UniqueInfectors    int
	ByPlaceType        map[string]int // place type → transmissions there
	// Histogram[i] is the number of persons who directly infected i others.
	Histogram       []int
	MeanSecondary   float64
	StdDevSecondary float64
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ByPlaceType: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalTransmissions = len(st.Transmissions)
	infectors := make(map[int64]bool)
	for _, r := range st.Transmissions {
		summary.ByPlaceType[r.PlaceType]++
		infectors[r.InfectorID] = true
	}
	summary.UniqueInfectors = len(infectors)

	if len(st.SecondaryInfections) == 0 {
		return summary
	}
	ids := make([]int64, 0, len(st.SecondaryInfections))
	for id := range st.SecondaryInfections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	counts := make([]float64, len(ids))
	maxCount := 0
	for i, id := range ids {
		n := st.SecondaryInfections[id]
		counts[i] = float64(n)
		if n > maxCount {
			maxCount = n
		}
	}
	summary.Histogram = make([]int, maxCount+1)
	for _, id := range ids {
		summary.Histogram[st.SecondaryInfections[id]]++
	}
	summary.MeanSecondary = stat.Mean(counts, nil)
	if len(counts) > 1 {
		summary.StdDevSecondary = stat.StdDev(counts, nil)
	}
	return summary
}
