// Package testutil provides shared test infrastructure for the vivid-sim
// packages: scenario fixtures and float assertion helpers.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// ScenarioPath resolves testdata/scenarios/<name>.yaml relative to this
// source file: sim/internal/testutil/ → testdata/.
func ScenarioPath(t *testing.T, name string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "scenarios", name+".yaml")
}

// LoadScenario returns the raw bytes of a scenario fixture.
func LoadScenario(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(ScenarioPath(t, name))
	if err != nil {
		t.Fatalf("Failed to read scenario %s: %v", name, err)
	}
	return data
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
