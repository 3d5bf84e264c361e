package trace

// TraceLevel controls whether transmission records are collected.
type TraceLevel string

const (
	// TraceLevelNone disables transmission recording (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelTransmissions captures one record per transmission.
	TraceLevelTransmissions TraceLevel = "transmissions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:          true,
	TraceLevelTransmissions: true,
	"":                      true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// SimulationTrace collects transmission records during a run.
type SimulationTrace struct {
	Level         TraceLevel
	Transmissions []TransmissionRecord
	// SecondaryInfections holds, per person, how many others they directly
	// infected; filled in at the end of a run.
	SecondaryInfections map[int64]int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(level TraceLevel) *SimulationTrace {
	return &SimulationTrace{
		Level:               level,
		Transmissions:       make([]TransmissionRecord, 0),
		SecondaryInfections: make(map[int64]int),
	}
}

// Enabled reports whether records should be collected.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Level == TraceLevelTransmissions
}

// RecordTransmission appends a transmission record.
func (st *SimulationTrace) RecordTransmission(record TransmissionRecord) {
	st.Transmissions = append(st.Transmissions, record)
}
