package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationTrace_RecordTransmission_AppendsRecord(t *testing.T) {
	// GIVEN a trace collecting transmissions
	st := NewSimulationTrace(TraceLevelTransmissions)

	// WHEN a record is added
	st.RecordTransmission(TransmissionRecord{Step: 3, InfectorID: 7, NewlyInfectedID: 9, PlaceType: "class"})

	// THEN the trace holds it
	require.Len(t, st.Transmissions, 1)
	assert.Equal(t, int64(7), st.Transmissions[0].InfectorID)
	assert.Equal(t, int64(9), st.Transmissions[0].NewlyInfectedID)
}

func TestSimulationTrace_Enabled(t *testing.T) {
	var nilTrace *SimulationTrace
	assert.False(t, nilTrace.Enabled())
	assert.False(t, NewSimulationTrace(TraceLevelNone).Enabled())
	assert.True(t, NewSimulationTrace(TraceLevelTransmissions).Enabled())
}

func TestTransmissionRecord_Row_MatchesHeader(t *testing.T) {
	// GIVEN a populated record
	r := TransmissionRecord{
		Step:         4,
		InfectorID:   12,
		StepSymptoms: 6,
		InfectorMask: "N95",
		PlaceType:    "dining",
		PlaceID:      401,
		ContactRate:  3,
	}

	// WHEN rendered
	row := r.Row()

	// THEN every header column has a cell and key cells are placed correctly
	require.Len(t, row, len(Header))
	assert.Equal(t, "4", row[0])
	assert.Equal(t, "12", row[1])
	assert.Equal(t, "6", row[4])
	assert.Equal(t, "N95", row[19])
	assert.Equal(t, "dining", row[20])
	assert.Equal(t, "401", row[21])
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"transmissions", true},
		{"", true}, // empty defaults to none
		{"decisions", false},
		{"NONE", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidTraceLevel(tt.level))
		})
	}
}
