package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// TransmissibilityInfo is the snapshot of a Person's infection-relevant
// attributes captured when they arrive at a place.
type TransmissibilityInfo struct {
	Status             InfectionStatus
	Infectious         bool
	Symptomatic        bool
	Mask               MaskType
	PhysicalDistancing float64
	ContactRate        int
	VaccineIn          float64 // reduction in susceptibility, 0 if unvaccinated
	VaccineOut         float64 // reduction in onward transmission, 0 if unvaccinated
}

// environmentInfector stands in for the unknown source of a flat-rate
// infection in audit records.
var environmentInfector = TransmissibilityInfo{Status: Infected, Infectious: true, Symptomatic: true}

// Trajectory is the sampled course of one infection, in absolute steps.
type Trajectory struct {
	Infectious      int
	IllnessDuration int
	SymptomOnset    int
	Asymptomatic    bool
	Severe          bool
}

// MaskMultiplier is the transmissibility multiplier of a mask type.
func (m MaskConfig) MaskMultiplier(t MaskType) float64 {
	switch t {
	case MaskNone:
		return 1
	case MaskHomemadeCloth:
		return m.HomemadeClothMultiplier
	case MaskSurgical:
		return m.SurgicalMultiplier
	case MaskN95:
		return m.N95Multiplier
	}
	panic(fmt.Sprintf("unknown mask type %d", int(t)))
}

// TransmissionProbability is the chance that infector infects target in a
// single contact at a place with the given per-step base rate.
func TransmissionProbability(cfg *Config, infector, target TransmissibilityInfo, baseRate float64) float64 {
	eff := cfg.Transmission.PhysicalDistancingEfficacy
	p := baseRate
	p *= cfg.Masks.MaskMultiplier(infector.Mask)
	p *= cfg.Masks.MaskMultiplier(target.Mask)
	p *= 1 - eff*infector.PhysicalDistancing
	p *= 1 - eff*target.PhysicalDistancing
	p *= 1 - infector.VaccineOut
	p *= 1 - target.VaccineIn
	return p
}

// WillInfect draws once against TransmissionProbability.
func WillInfect(cfg *Config, infector, target TransmissibilityInfo, baseRate float64, rng *rand.Rand) bool {
	return rng.Float64() < TransmissionProbability(cfg, infector, target, baseRate)
}

// sampleWithoutReplacement returns n elements of items in a seeded random
// order; when n covers the whole slice it is returned unchanged.
func sampleWithoutReplacement[T any](items []T, n int, rng *rand.Rand) []T {
	if n >= len(items) {
		return items
	}
	if n <= 0 {
		return nil
	}
	pool := make([]T, len(items))
	copy(pool, items)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// SampleTrajectory draws the severity band with one uniform draw and then
// samples infectious onset, illness duration and symptom onset for that band.
func SampleTrajectory(rng *rand.Rand, d TrajectoryDistribution, stepsPerDay, stepInfected int) (Trajectory, error) {
	severity := rng.Float64()
	var tr Trajectory
	duration := d.IllnessDurationNonSevere
	switch {
	case severity < d.PercentageAsymptomatic:
		tr.Asymptomatic = true
	case severity < d.PercentageAsymptomatic+d.PercentageNonSevere:
	case severity >= 1-d.PercentageSevere:
		tr.Severe = true
		duration = d.IllnessDurationSevere
	default:
		return Trajectory{}, fmt.Errorf("%w: severity draw %f outside every band", ErrInvalidDistribution, severity)
	}
	tr.Infectious = Discrete(rng, d.Infectious.Start, d.Infectious.End)*stepsPerDay + stepInfected
	tr.IllnessDuration = Discrete(rng, duration.Start, duration.End)*stepsPerDay + stepInfected
	tr.SymptomOnset = Discrete(rng, d.SymptomsOnset.Start, d.SymptomsOnset.End)*stepsPerDay + stepInfected
	return tr, nil
}

// AgeDeathProbability looks up the per-decade probability of death given
// severe illness. Ages past the last bucket use the last bucket.
func AgeDeathProbability(table []float64, age float64) (float64, error) {
	if age < 0 || math.IsNaN(age) {
		return 0, fmt.Errorf("%w: %f", ErrInvalidAge, age)
	}
	if len(table) == 0 {
		return 0, fmt.Errorf("%w: empty mortality table", ErrInvalidAge)
	}
	bucket := int(age / 10)
	if bucket >= len(table) {
		bucket = len(table) - 1
	}
	return table[bucket], nil
}

// DeathProbability is the per-step death chance for a symptomatic infection,
// normalized against the expected severe-case span between symptom onset and
// recovery and scaled by this infection's own span.
func DeathProbability(cfg *Config, age float64, tr Trajectory) (float64, error) {
	if tr.Asymptomatic {
		return 0, nil
	}
	pAge, err := AgeDeathProbability(cfg.AgeDeath, age)
	if err != nil {
		return 0, err
	}
	d := cfg.Trajectory
	spd := float64(cfg.StepsPerDay)
	expectedSevere := float64(d.IllnessDurationSevere.Start+d.IllnessDurationSevere.End) / 2 * spd
	expectedOnset := float64(d.SymptomsOnset.Start+d.SymptomsOnset.End) / 2 * spd
	return pAge / (expectedSevere - expectedOnset) * float64(tr.IllnessDuration-tr.SymptomOnset), nil
}

// TestAccuracy is the probability a test reports the true status.
//
// In time-varying mode the accuracy for an infected person is an inverted
// parabola over time since infection t, with vertex (h, k) where
// h = symptomOnset - timeInfected + 3 days and k = 1 - falseNegativeRate.
// It is 0 at infection and again at illnessDuration + daysAfterInfectionToDetect.
func TestAccuracy(cfg *Config, status InfectionStatus, tr Trajectory, timeInfected, step int) float64 {
	fp := cfg.Testing.FalsePositiveRate
	fn := cfg.Testing.FalseNegativeRate
	switch cfg.TestingMode() {
	case TestingPerfect:
		return 1
	case TestingConstant:
		if status == Infected {
			return 1 - fn
		}
		return 1 - fp
	}
	switch status {
	case Susceptible, Recovered:
		return 1 - fp
	case Infected:
		spd := float64(cfg.StepsPerDay)
		h := float64(tr.SymptomOnset-timeInfected) + 3*spd
		k := 1 - fn
		t := float64(step - timeInfected)
		if t < h {
			return -k/(h*h)*(t-h)*(t-h) + k
		}
		d := float64(tr.IllnessDuration-timeInfected) + float64(cfg.Testing.DaysAfterInfectionToDetect)*spd
		return -k/(d*d-2*d*h+h*h)*(t-h)*(t-h) + k
	}
	return 1
}
