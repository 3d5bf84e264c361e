package sim

import (
	"errors"
	"fmt"
)

// AgentID identifies any agent taking part in a simulation: persons, places
// and the orchestrator share one id space.
type AgentID int64

// AgentKind distinguishes the agent types taking part in a simulation.
type AgentKind int

const (
	KindPerson AgentKind = iota
	KindPlace
	KindOrchestrator
)

// InfectionStatus is the disease state of a Person.
type InfectionStatus int

const (
	Susceptible InfectionStatus = iota
	Infected
	Recovered
	Dead
	Suppressed
)

func (s InfectionStatus) String() string {
	switch s {
	case Susceptible:
		return "SUSCEPTIBLE"
	case Infected:
		return "INFECTED"
	case Recovered:
		return "RECOVERED"
	case Dead:
		return "DEAD"
	case Suppressed:
		return "SUPPRESSED"
	}
	return fmt.Sprintf("InfectionStatus(%d)", int(s))
}

// MaskType is the kind of mask a Person wears when they choose to wear one.
type MaskType int

const (
	MaskNone MaskType = iota
	MaskHomemadeCloth
	MaskSurgical
	MaskN95
)

func (m MaskType) String() string {
	switch m {
	case MaskNone:
		return "NONE"
	case MaskHomemadeCloth:
		return "HOMEMADE_CLOTH"
	case MaskSurgical:
		return "SURGICAL"
	case MaskN95:
		return "N95"
	}
	return fmt.Sprintf("MaskType(%d)", int(m))
}

// Optionality controls whether a scheduled place is always attended.
type Optionality int

const (
	Mandatory Optionality = iota
	Optional
)

// NetworkType is the contact topology used inside a place.
type NetworkType int

const (
	FullyConnected NetworkType = iota
	Star
	FullyConnectedDependentOnCenter
	FlatInfectionRate
	FullyConnectedWithFlatInfectionRate
)

var networkTypeNames = map[NetworkType]string{
	FullyConnected:                      "fully-connected",
	Star:                                "star",
	FullyConnectedDependentOnCenter:     "fully-connected-dependent-on-center",
	FlatInfectionRate:                   "flat-infection-rate",
	FullyConnectedWithFlatInfectionRate: "fully-connected-with-flat-infection-rate",
}

func (n NetworkType) String() string {
	if name, ok := networkTypeNames[n]; ok {
		return name
	}
	return fmt.Sprintf("NetworkType(%d)", int(n))
}

// ParseNetworkType maps a scenario-file name to a NetworkType.
func ParseNetworkType(name string) (NetworkType, error) {
	if name == "" {
		return FullyConnected, nil
	}
	for n, s := range networkTypeNames {
		if s == name {
			return n, nil
		}
	}
	return 0, fmt.Errorf("unknown network type %q", name)
}

// needsCenter reports whether the topology is cancelled when its center is absent.
func (n NetworkType) needsCenter() bool {
	return n == Star || n == FullyConnectedDependentOnCenter
}

func (n NetworkType) hasFullyConnectedPass() bool {
	return n == FullyConnected || n == FullyConnectedDependentOnCenter || n == FullyConnectedWithFlatInfectionRate
}

func (n NetworkType) hasFlatPass() bool {
	return n == FlatInfectionRate || n == FullyConnectedWithFlatInfectionRate
}

// Protocol selects the orchestrator's contact tracing behaviour.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	ProtocolBestPractice
	ProtocolConservative
	ProtocolTestOnly
)

// ValidProtocols maps scenario-file names to protocols.
var ValidProtocols = map[string]Protocol{
	"best-practice": ProtocolBestPractice,
	"conservative":  ProtocolConservative,
	"test-only":     ProtocolTestOnly,
}

func (p Protocol) String() string {
	for name, v := range ValidProtocols {
		if v == p {
			return name
		}
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

// TestingMode selects how test accuracy is computed.
type TestingMode int

const (
	TestingPerfect TestingMode = iota
	TestingConstant
	TestingTimeVarying
)

// ValidTestingModes maps scenario-file names to testing modes.
var ValidTestingModes = map[string]TestingMode{
	"":             TestingPerfect,
	"perfect":      TestingPerfect,
	"constant":     TestingConstant,
	"time-varying": TestingTimeVarying,
}

// Fatal run errors. Every one of them aborts the run; nothing retries.
var (
	ErrSuppressedInfection   = errors.New("suppressed person cannot be infected")
	ErrInvalidProtocol       = errors.New("invalid contact tracing protocol")
	ErrInvalidDistribution   = errors.New("invalid distribution")
	ErrInvalidAge            = errors.New("invalid age for mortality lookup")
	ErrInitOutsideStepZero   = errors.New("place and schedule initialization can only be done at step 0")
	ErrRedundantSuppression  = errors.New("suppression reassignment does not change state")
	ErrIneligibleSuppression = errors.New("only susceptible persons can be suppressed")
	ErrMissingRoster         = errors.New("expected exactly one bootstrap place agent")
)
