package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Range is a closed [Start, End] interval an agent draws one value from at
// initialization.
type Range struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// IntRange is a closed integer interval.
type IntRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// TrajectoryDistribution parameterizes illness trajectories. All ranges are
// in days; they are scaled by StepsPerDay when sampled.
type TrajectoryDistribution struct {
	PercentageAsymptomatic   float64  `yaml:"percentage_asymptomatic"`
	PercentageNonSevere      float64  `yaml:"percentage_non_severe"`
	PercentageSevere         float64  `yaml:"percentage_severe"`
	Infectious               IntRange `yaml:"infectious"`
	IllnessDurationNonSevere IntRange `yaml:"illness_duration_non_severe"`
	IllnessDurationSevere    IntRange `yaml:"illness_duration_severe"`
	SymptomsOnset            IntRange `yaml:"symptoms_onset"`
}

// AffiliationProfile is the initialization table for one affiliation kind.
type AffiliationProfile struct {
	Age                        Range   `yaml:"age"`
	AgeMean                    float64 `yaml:"age_mean"`
	AgeSD                      float64 `yaml:"age_sd"` // > 0 selects a truncated normal
	MaskCompliance             Range   `yaml:"mask_compliance"`
	QuarantineWhenSymptomatic  Range   `yaml:"quarantine_when_symptomatic"`
	SymptomsReport             Range   `yaml:"symptoms_report"`
	Isolation                  Range   `yaml:"isolation"`
	IsolateWhenContactNotified Range   `yaml:"isolate_when_contact_notified"`
	PhysicalDistancing         Range   `yaml:"physical_distancing"`
	ProbGoesToOptionalPlace    Range   `yaml:"prob_goes_to_optional_place"`
	HostsEvent                 Range   `yaml:"hosts_event"`
	AttendsEvent               Range   `yaml:"attends_event"`
	// FitnessTimesPerWeek is a distribution over 0..len-1 visits; the
	// remainder of the probability mass goes to 0.
	FitnessTimesPerWeek []float64 `yaml:"fitness_times_per_week"`
}

// PopulationConfig sizes the population and its initial state.
type PopulationConfig struct {
	Agents                     int         `yaml:"agents"`
	ActiveAgents               int         `yaml:"active_agents"`
	ActiveAgentsSchedule       map[int]int `yaml:"active_agents_schedule"`
	PercInitiallyInfected      float64     `yaml:"perc_initially_infected"`
	PercInitiallyRecovered     float64     `yaml:"perc_initially_recovered"`
	PercInitiallyVaccinated    float64     `yaml:"perc_initially_vaccinated"`
	PercInitialQuarantineOrder float64     `yaml:"perc_initial_infected_quarantine_order"`
	ContactRate                IntRange    `yaml:"contact_rate"`
	NumToRandomlyInfect        int         `yaml:"num_to_randomly_infect"`
	// Affiliations maps an affiliation kind to its initialization table.
	Affiliations map[string]AffiliationProfile `yaml:"affiliations"`
}

// MaskConfig controls mask mandates and mask efficacy.
type MaskConfig struct {
	Mandate           bool    `yaml:"mandate"`
	PercHomemadeCloth float64 `yaml:"perc_homemade_cloth"`
	PercSurgical      float64 `yaml:"perc_surgical"`
	PercN95           float64 `yaml:"perc_n95"`
	// Transmissibility multipliers per mask type; NONE is always 1.
	HomemadeClothMultiplier float64 `yaml:"homemade_cloth_multiplier"`
	SurgicalMultiplier      float64 `yaml:"surgical_multiplier"`
	N95Multiplier           float64 `yaml:"n95_multiplier"`
}

// PlaceTypeConfig describes one place type.
type PlaceTypeConfig struct {
	Name string `yaml:"name"`
	// BaseInfectivity overrides Transmission.BaseInfectivity when non-nil.
	BaseInfectivity        *float64 `yaml:"base_infectivity,omitempty"`
	OmitFromContactTracing bool     `yaml:"omit_from_contact_tracing"`
	Fitness                bool     `yaml:"fitness"`
	// Network is the contact topology name; empty means fully-connected.
	Network  string `yaml:"network"`
	Optional bool   `yaml:"optional"`
}

// LayoutConfig sizes the synthetic population built at step 0.
type LayoutConfig struct {
	// AffiliationShares is the fraction of persons of each kind; the
	// remainder is general.
	AffiliationShares  map[string]float64 `yaml:"affiliation_shares"`
	HouseholdSize      IntRange           `yaml:"household_size"`
	WorkplaceSize      int                `yaml:"workplace_size"`
	ClassSize          int                `yaml:"class_size"`
	ClassesPerStudent  int                `yaml:"classes_per_student"`
	DiningHalls        int                `yaml:"dining_halls"`
	FitnessCenters     int                `yaml:"fitness_centers"`
	Buildings          int                `yaml:"buildings"`
	StudentFacingShare float64            `yaml:"student_facing_share"`
	Friends            IntRange           `yaml:"friends"`
	// ScheduleSteps is the length of the repeating weekly schedule.
	ScheduleSteps int `yaml:"schedule_steps"`
}

// TransmissionConfig holds the place-level infection parameters.
type TransmissionConfig struct {
	BaseInfectivity                    float64  `yaml:"base_infectivity"`
	FlatInfectionRate                  float64  `yaml:"flat_infection_rate"`
	StarContacts                       int      `yaml:"star_contacts"`
	PhysicalDistancingEfficacy         float64  `yaml:"physical_distancing_efficacy"`
	AdditionalPlaceComplianceReduction float64  `yaml:"additional_place_compliance_reduction"`
	BaseExternalInfectionRate          float64  `yaml:"base_external_infection_rate"`
	OtherIllnessInfectionRate          float64  `yaml:"other_illness_infection_rate"`
	OtherIllnessDuration               IntRange `yaml:"other_illness_duration"`
}

// TestingConfig controls test capacity and accuracy.
type TestingConfig struct {
	TestsPerDay                  int     `yaml:"tests_per_day"`
	DelaySteps                   int     `yaml:"delay_steps"`
	Mode                         string  `yaml:"mode"`
	FalsePositiveRate            float64 `yaml:"false_positive_rate"`
	FalseNegativeRate            float64 `yaml:"false_negative_rate"`
	DaysAfterInfectionToDetect   int     `yaml:"days_after_infection_to_detect"`
	StudentFacingStaffMultiplier float64 `yaml:"student_facing_staff_multiplier"`
}

// TracingConfig controls contact tracing.
type TracingConfig struct {
	Protocol                   string  `yaml:"protocol"`
	LookbackDays               int     `yaml:"lookback_days"`
	ContactNotifiedDays        int     `yaml:"contact_notified_days"`
	TestingAvailableForTracing bool    `yaml:"testing_available_for_tracing"`
	InterviewRecall            float64 `yaml:"interview_recall"`
}

// VaccineConfig controls vaccination.
type VaccineConfig struct {
	Efficacy    float64 `yaml:"efficacy"`
	OutEfficacy float64 `yaml:"out_efficacy"`
	PerStep     int     `yaml:"per_step"`
}

// InterventionConfig holds population-wide behaviour switches.
type InterventionConfig struct {
	ForceIsolate       bool    `yaml:"force_isolate"`
	CloseFitnessCenter bool    `yaml:"close_fitness_center"`
	ComplianceModifier float64 `yaml:"compliance_modifier"`
}

// Config is the immutable configuration threaded through every component.
type Config struct {
	Seed                int64                  `yaml:"seed"`
	Steps               int                    `yaml:"steps"`
	StepsPerDay         int                    `yaml:"steps_per_day"`
	RunID               string                 `yaml:"run_id"`
	OutputTransmissions bool                   `yaml:"output_transmissions"`
	Population          PopulationConfig       `yaml:"population"`
	Trajectory          TrajectoryDistribution `yaml:"trajectory"`
	// AgeDeath is the probability of death given severe illness per decade
	// of age; the last bucket covers every age above.
	AgeDeath      []float64          `yaml:"age_death"`
	Masks         MaskConfig         `yaml:"masks"`
	PlaceTypes    []PlaceTypeConfig  `yaml:"place_types"`
	Transmission  TransmissionConfig `yaml:"transmission"`
	Testing       TestingConfig      `yaml:"testing"`
	Tracing       TracingConfig      `yaml:"tracing"`
	Vaccine       VaccineConfig      `yaml:"vaccine"`
	Interventions InterventionConfig `yaml:"interventions"`
	Layout        LayoutConfig       `yaml:"layout"`
}

// DefaultAffiliation is the profile used for agents without a specific kind.
const DefaultAffiliation = "general"

// DefaultConfig returns the baseline scenario.
func DefaultConfig() Config {
	unit := Range{Start: 0, End: 1}
	return Config{
		Seed:        42,
		Steps:       100,
		StepsPerDay: 1,
		Population: PopulationConfig{
			Agents:                     400,
			ActiveAgents:               400,
			PercInitiallyInfected:      0.05,
			PercInitiallyRecovered:     0.1,
			PercInitialQuarantineOrder: 1.0,
			ContactRate:                IntRange{Start: 3, End: 6},
			Affiliations: map[string]AffiliationProfile{
				DefaultAffiliation: {
					Age:                        Range{Start: 0, End: 100},
					MaskCompliance:             unit,
					QuarantineWhenSymptomatic:  unit,
					SymptomsReport:             unit,
					Isolation:                  unit,
					IsolateWhenContactNotified: unit,
					PhysicalDistancing:         Range{Start: 0.5, End: 1},
					ProbGoesToOptionalPlace:    Range{Start: 1, End: 1},
				},
				"student": {
					Age:                        Range{Start: 17, End: 23},
					MaskCompliance:             unit,
					QuarantineWhenSymptomatic:  unit,
					SymptomsReport:             unit,
					Isolation:                  unit,
					IsolateWhenContactNotified: unit,
					PhysicalDistancing:         Range{Start: 0.5, End: 1},
					ProbGoesToOptionalPlace:    Range{Start: 0.01, End: 1},
					HostsEvent:                 Range{Start: 0, End: 0.01},
					AttendsEvent:               Range{Start: 0, End: 0.05},
					FitnessTimesPerWeek:        []float64{0.01, 0.06, 0.14, 0.18, 0.14, 0.06, 0.01},
				},
				"staff":   staffProfile(),
				"faculty": staffProfile(),
			},
		},
		Trajectory: TrajectoryDistribution{
			PercentageAsymptomatic:   0.5,
			PercentageNonSevere:      0.45,
			PercentageSevere:         0.05,
			Infectious:               IntRange{Start: 2, End: 4},
			IllnessDurationNonSevere: IntRange{Start: 7, End: 14},
			IllnessDurationSevere:    IntRange{Start: 14, End: 30},
			SymptomsOnset:            IntRange{Start: 2, End: 11},
		},
		AgeDeath: []float64{0.000954, 0.00352, 0.00296, 0.00348, 0.00711, 0.0206, 0.0579, 0.127, 0.233},
		Masks: MaskConfig{
			Mandate:                 true,
			PercHomemadeCloth:       0.5,
			PercSurgical:            0.4,
			PercN95:                 0.1,
			HomemadeClothMultiplier: 0.6,
			SurgicalMultiplier:      0.4,
			N95Multiplier:           0.05,
		},
		PlaceTypes: []PlaceTypeConfig{
			{Name: "home"},
			{Name: "work"},
			{Name: "class", Network: "star"},
			{Name: "dining", Network: "fully-connected-with-flat-infection-rate", Optional: true},
			{Name: "fitness", Fitness: true, Optional: true},
			{Name: "building", OmitFromContactTracing: true, Network: "flat-infection-rate"},
		},
		Transmission: TransmissionConfig{
			BaseInfectivity:                    0.05,
			FlatInfectionRate:                  0.0002,
			StarContacts:                       5,
			PhysicalDistancingEfficacy:         0.5,
			AdditionalPlaceComplianceReduction: 0.5,
			BaseExternalInfectionRate:          0.0002,
			OtherIllnessInfectionRate:          0.0002,
			OtherIllnessDuration:               IntRange{Start: 3, End: 7},
		},
		Testing: TestingConfig{
			TestsPerDay:                  50,
			DelaySteps:                   2,
			Mode:                         "perfect",
			DaysAfterInfectionToDetect:   25,
			StudentFacingStaffMultiplier: 1.0,
		},
		Tracing: TracingConfig{
			Protocol:                   "best-practice",
			LookbackDays:               14,
			ContactNotifiedDays:        14,
			TestingAvailableForTracing: true,
			InterviewRecall:            1.0,
		},
		Vaccine: VaccineConfig{
			Efficacy:    0.95,
			OutEfficacy: 0.45,
		},
		Interventions: InterventionConfig{
			ComplianceModifier: 1.0,
		},
		Layout: LayoutConfig{
			AffiliationShares:  map[string]float64{"student": 0.6, "staff": 0.15, "faculty": 0.1},
			HouseholdSize:      IntRange{Start: 1, End: 4},
			WorkplaceSize:      12,
			ClassSize:          25,
			ClassesPerStudent:  4,
			DiningHalls:        3,
			FitnessCenters:     1,
			Buildings:          4,
			StudentFacingShare: 0.5,
			Friends:            IntRange{Start: 1, End: 5},
			ScheduleSteps:      7,
		},
	}
}

func staffProfile() AffiliationProfile {
	unit := Range{Start: 0, End: 1}
	return AffiliationProfile{
		Age:                        Range{Start: 18, End: 100},
		AgeMean:                    45,
		AgeSD:                      20,
		MaskCompliance:             unit,
		QuarantineWhenSymptomatic:  unit,
		SymptomsReport:             unit,
		Isolation:                  unit,
		IsolateWhenContactNotified: unit,
		PhysicalDistancing:         Range{Start: 0.5, End: 1},
		ProbGoesToOptionalPlace:    Range{Start: 0.5, End: 1},
		HostsEvent:                 Range{Start: 0, End: 0.01},
		AttendsEvent:               Range{Start: 0, End: 0.02},
		FitnessTimesPerWeek:        []float64{0.03, 0.05, 0.07, 0.03, 0.02, 0, 0},
	}
}

// LoadConfig reads a YAML scenario and layers it over DefaultConfig.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML scenario bytes over DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &cfg, nil
}

// Protocol returns the parsed contact tracing protocol. Unknown names map
// to ProtocolUnknown, which the orchestrator treats as fatal.
func (c *Config) Protocol() Protocol {
	return ValidProtocols[c.Tracing.Protocol]
}

// TestingMode returns the parsed testing mode.
func (c *Config) TestingMode() TestingMode {
	return ValidTestingModes[c.Testing.Mode]
}

// LookbackSteps is the contact tracing window in steps.
func (c *Config) LookbackSteps() int {
	return c.Tracing.LookbackDays * c.StepsPerDay
}

// QuarantineSteps is the length of a contact-notified quarantine in steps.
func (c *Config) QuarantineSteps() int {
	return c.Tracing.ContactNotifiedDays * c.StepsPerDay
}

// InfectionRate is the per-step base infectivity for a place type.
func (c *Config) InfectionRate(placeType int) float64 {
	rate := c.Transmission.BaseInfectivity
	if placeType >= 0 && placeType < len(c.PlaceTypes) && c.PlaceTypes[placeType].BaseInfectivity != nil {
		rate = *c.PlaceTypes[placeType].BaseInfectivity
	}
	return rate / float64(c.StepsPerDay)
}

// OmittedFromContactTracing reports whether occupancy of the place type is
// never recorded.
func (c *Config) OmittedFromContactTracing(placeType int) bool {
	return placeType >= 0 && placeType < len(c.PlaceTypes) && c.PlaceTypes[placeType].OmitFromContactTracing
}

// IsFitness reports whether the place type is a fitness facility.
func (c *Config) IsFitness(placeType int) bool {
	return placeType >= 0 && placeType < len(c.PlaceTypes) && c.PlaceTypes[placeType].Fitness
}

// PlaceTypeIndex returns the index of the named place type, or -1.
func (c *Config) PlaceTypeIndex(name string) int {
	for i, pt := range c.PlaceTypes {
		if pt.Name == name {
			return i
		}
	}
	return -1
}

// ActiveAgentsAt is the active-population target for a step: the latest
// schedule entry at or before step, else Population.ActiveAgents.
func (c *Config) ActiveAgentsAt(step int) int {
	target := c.Population.ActiveAgents
	best := -1
	for s, n := range c.Population.ActiveAgentsSchedule {
		if s <= step && s > best {
			best, target = s, n
		}
	}
	return target
}

// Profile returns the initialization table for an affiliation kind,
// falling back to the general profile.
func (c *Config) Profile(kind string) AffiliationProfile {
	if p, ok := c.Population.Affiliations[kind]; ok {
		return p
	}
	return c.Population.Affiliations[DefaultAffiliation]
}

// Validate checks that all fields in the configuration are usable.
func (c *Config) Validate() error {
	if c.StepsPerDay <= 0 {
		return fmt.Errorf("steps_per_day must be positive, got %d", c.StepsPerDay)
	}
	if c.Steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d", c.Steps)
	}
	if c.Population.Agents < 0 {
		return fmt.Errorf("population.agents must be non-negative, got %d", c.Population.Agents)
	}
	if c.Population.ActiveAgents < 0 || c.Population.ActiveAgents > c.Population.Agents {
		return fmt.Errorf("population.active_agents must be in [0, %d], got %d", c.Population.Agents, c.Population.ActiveAgents)
	}
	steps := make([]int, 0, len(c.Population.ActiveAgentsSchedule))
	for s := range c.Population.ActiveAgentsSchedule {
		steps = append(steps, s)
	}
	sort.Ints(steps)
	for _, s := range steps {
		n := c.Population.ActiveAgentsSchedule[s]
		if n < 0 || n > c.Population.Agents {
			return fmt.Errorf("population.active_agents_schedule[%d] must be in [0, %d], got %d", s, c.Population.Agents, n)
		}
	}
	if c.Population.PercInitiallyRecovered >= 1 {
		return fmt.Errorf("population.perc_initially_recovered must be below 1, got %f", c.Population.PercInitiallyRecovered)
	}
	if _, ok := c.Population.Affiliations[DefaultAffiliation]; !ok {
		return fmt.Errorf("population.affiliations must define %q", DefaultAffiliation)
	}
	if c.Protocol() == ProtocolUnknown {
		return fmt.Errorf("%w: %q; valid: best-practice, conservative, test-only", ErrInvalidProtocol, c.Tracing.Protocol)
	}
	if _, ok := ValidTestingModes[c.Testing.Mode]; !ok {
		return fmt.Errorf("unknown testing mode %q; valid: perfect, constant, time-varying", c.Testing.Mode)
	}
	t := c.Trajectory
	total := t.PercentageAsymptomatic + t.PercentageNonSevere + t.PercentageSevere
	if math.Abs(total-1) > 1e-9 {
		return fmt.Errorf("%w: trajectory percentages sum to %f, want 1", ErrInvalidDistribution, total)
	}
	for name, r := range map[string]IntRange{
		"trajectory.infectious":                  t.Infectious,
		"trajectory.illness_duration_non_severe": t.IllnessDurationNonSevere,
		"trajectory.illness_duration_severe":     t.IllnessDurationSevere,
		"trajectory.symptoms_onset":              t.SymptomsOnset,
		"population.contact_rate":                c.Population.ContactRate,
		"transmission.other_illness_duration":    c.Transmission.OtherIllnessDuration,
	} {
		if r.Start > r.End || r.Start < 0 {
			return fmt.Errorf("%s must satisfy 0 <= start <= end, got [%d, %d]", name, r.Start, r.End)
		}
	}
	if len(c.AgeDeath) == 0 {
		return fmt.Errorf("age_death must list at least one bucket")
	}
	if c.Masks.PercHomemadeCloth+c.Masks.PercSurgical+c.Masks.PercN95 > 1+1e-9 {
		return fmt.Errorf("%w: mask type percentages exceed 1", ErrInvalidDistribution)
	}
	if len(c.PlaceTypes) == 0 {
		return fmt.Errorf("place_types must list at least one type")
	}
	for _, pt := range c.PlaceTypes {
		if _, err := ParseNetworkType(pt.Network); err != nil {
			return fmt.Errorf("place type %q: %w", pt.Name, err)
		}
	}
	for kind, share := range c.Layout.AffiliationShares {
		if !ValidAffiliations[kind] {
			return fmt.Errorf("layout.affiliation_shares: unknown affiliation %q", kind)
		}
		if share < 0 {
			return fmt.Errorf("layout.affiliation_shares[%s] must be non-negative, got %f", kind, share)
		}
	}
	if c.Layout.HouseholdSize.Start < 1 || c.Layout.HouseholdSize.Start > c.Layout.HouseholdSize.End {
		return fmt.Errorf("layout.household_size must satisfy 1 <= start <= end, got [%d, %d]", c.Layout.HouseholdSize.Start, c.Layout.HouseholdSize.End)
	}
	if c.Layout.ScheduleSteps < 1 {
		return fmt.Errorf("layout.schedule_steps must be positive, got %d", c.Layout.ScheduleSteps)
	}
	if c.Tracing.LookbackDays < 0 || c.Tracing.ContactNotifiedDays < 0 {
		return fmt.Errorf("tracing windows must be non-negative")
	}
	if c.Tracing.InterviewRecall < 0 || c.Tracing.InterviewRecall > 1 {
		return fmt.Errorf("tracing.interview_recall must be in [0, 1], got %f", c.Tracing.InterviewRecall)
	}
	if c.Testing.DelaySteps < 0 || c.Testing.TestsPerDay < 0 {
		return fmt.Errorf("testing.delay_steps and testing.tests_per_day must be non-negative")
	}
	if c.Vaccine.PerStep < 0 {
		return fmt.Errorf("vaccine.per_step must be non-negative, got %d", c.Vaccine.PerStep)
	}
	return nil
}
