package sim

import (
	"fmt"
	"sort"
)

// Affiliation kinds recognised in scenario files and population assignments.
const (
	AffiliationGeneral = DefaultAffiliation
	AffiliationStudent = "student"
	AffiliationStaff   = "staff"
	AffiliationFaculty = "faculty"
)

// ValidAffiliations lists the recognised affiliation kinds.
var ValidAffiliations = map[string]bool{
	AffiliationGeneral: true,
	AffiliationStudent: true,
	AffiliationStaff:   true,
	AffiliationFaculty: true,
}

// PlaceRef is what a Person knows about a place it may visit.
type PlaceRef struct {
	ID          AgentID
	Type        int
	Optionality Optionality
}

// PersonAssignment is the population initializer's output for one person.
type PersonAssignment struct {
	Affiliation   string
	StudentFacing bool
	// Schedule[s % len(Schedule)] is the place set for step s.
	Schedule  [][]PlaceRef
	Isolation []PlaceRef
}

// Affiliation is the per-kind behaviour of a Person.
type Affiliation interface {
	// Kind returns the affiliation name.
	Kind() string
	// InitializationInfo returns the table the person's attributes are drawn from.
	InitializationInfo(cfg *Config) AffiliationProfile
	// InitialPlace runs once after the schedule arrives at step 0.
	InitialPlace(p *Person, cfg *Config)
	// AttendanceOverride decides attendance for places the affiliation
	// handles itself. ok is false when the default optionality rule applies.
	AttendanceOverride(p *Person, place PlaceRef, cfg *Config) (attend, ok bool)
	// TestSelectionMultiplier weights the person in randomized testing.
	TestSelectionMultiplier(cfg *Config) float64
}

// NewAffiliation returns the behaviour for an affiliation kind.
// Panics on an unknown kind; callers validate kinds before constructing.
func NewAffiliation(kind string, studentFacing bool) Affiliation {
	switch kind {
	case AffiliationGeneral, "":
		return generalAffiliation{}
	case AffiliationStudent:
		return studentAffiliation{}
	case AffiliationStaff:
		return staffAffiliation{studentFacing: studentFacing}
	case AffiliationFaculty:
		return facultyAffiliation{}
	}
	valid := make([]string, 0, len(ValidAffiliations))
	for k := range ValidAffiliations {
		valid = append(valid, k)
	}
	sort.Strings(valid)
	panic(fmt.Sprintf("unknown affiliation %q; valid: %v", kind, valid))
}

type generalAffiliation struct{}

func (generalAffiliation) Kind() string { return AffiliationGeneral }

func (generalAffiliation) InitializationInfo(cfg *Config) AffiliationProfile {
	return cfg.Profile(AffiliationGeneral)
}

func (generalAffiliation) InitialPlace(*Person, *Config) {}

func (generalAffiliation) AttendanceOverride(*Person, PlaceRef, *Config) (bool, bool) {
	return false, false
}

func (generalAffiliation) TestSelectionMultiplier(*Config) float64 { return 1 }

// campusAffiliation carries the fitness-centre rules shared by every
// campus affiliation.
type campusAffiliation struct{}

func (campusAffiliation) AttendanceOverride(p *Person, place PlaceRef, cfg *Config) (bool, bool) {
	if !cfg.IsFitness(place.Type) {
		return false, false
	}
	if cfg.Interventions.CloseFitnessCenter {
		return false, true
	}
	return p.rng.Float64() < float64(p.fitnessTimesPerWeek)/7, true
}

func (campusAffiliation) InitialPlace(*Person, *Config) {}

func (campusAffiliation) TestSelectionMultiplier(*Config) float64 { return 1 }

type studentAffiliation struct{ campusAffiliation }

func (studentAffiliation) Kind() string { return AffiliationStudent }

func (studentAffiliation) InitializationInfo(cfg *Config) AffiliationProfile {
	return cfg.Profile(AffiliationStudent)
}

// InitialPlace records the student's residence as the place they host
// informal gatherings at.
func (studentAffiliation) InitialPlace(p *Person, cfg *Config) {
	home := cfg.PlaceTypeIndex("home")
	for _, ref := range p.isolationPlaces {
		if ref.Type == home {
			ref := ref
			p.home = &ref
			return
		}
	}
	if len(p.isolationPlaces) > 0 {
		ref := p.isolationPlaces[0]
		p.home = &ref
	}
}

type staffAffiliation struct {
	campusAffiliation
	studentFacing bool
}

func (staffAffiliation) Kind() string { return AffiliationStaff }

func (staffAffiliation) InitializationInfo(cfg *Config) AffiliationProfile {
	return cfg.Profile(AffiliationStaff)
}

func (s staffAffiliation) TestSelectionMultiplier(cfg *Config) float64 {
	if s.studentFacing {
		return cfg.Testing.StudentFacingStaffMultiplier
	}
	return 1
}

type facultyAffiliation struct{ campusAffiliation }

func (facultyAffiliation) Kind() string { return AffiliationFaculty }

func (facultyAffiliation) InitializationInfo(cfg *Config) AffiliationProfile {
	return cfg.Profile(AffiliationFaculty)
}
