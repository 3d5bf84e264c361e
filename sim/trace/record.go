// Package trace provides transmission audit records for post-run analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

import "strconv"

// TransmissionRecord captures one transmission: the infector's state and
// compliance at the time, where it happened, and who was infected.
type TransmissionRecord struct {
	Step                          int
	InfectorID                    int64
	InfectorSymptomatic           bool
	StepExposure                  int
	StepSymptoms                  int
	StepRecover                   int
	InfectorAsymptomatic          bool
	InfectorAffiliation           string
	CompSymptomsReport            float64
	CompQuarantineWhenSymptomatic float64
	ComplianceMask                float64
	ComplianceIsolating           float64
	IsolatingBecauseOfSymptoms    bool
	IsolatingBecauseOfTracing     bool
	CompIsolateWhenNotified       float64
	CompPhysicalDistancing        float64
	ContactRate                   int
	ProbHostsEvent                float64
	ProbAttendsEvent              float64
	InfectorMask                  string
	PlaceType                     string
	PlaceID                       int64
	NewlyInfectedID               int64
	NewlyInfectedDistancing       float64
	NewlyInfectedMask             string
}

// Header is the column list matching Row.
var Header = []string{
	"step", "infectingAgentId", "isSymptomatic", "stepExposure", "stepSymptoms", "stepRecover",
	"isAsymptomatic", "agentType", "compSymptomsReport", "compQuarantineWhenSymptomatic",
	"complianceMask", "complianceIsolating", "isSelfIsolatingBecauseOfSymptoms",
	"isSelfIsolatingBecauseOfContactTracing", "complianceIsolateWhenContactNotified",
	"compliancePhysicalDistancing", "contactRate", "probHostsAdditionalEvent",
	"probAttendsAdditionalEvent", "maskType", "placeType", "placeId", "newlyInfectedAgentId",
	"newlyInfectedCompliancePhysicalDistancing", "newlyInfectedMaskType",
}

// Row renders the record as CSV cells in Header order.
func (r TransmissionRecord) Row() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		strconv.Itoa(r.Step),
		strconv.FormatInt(r.InfectorID, 10),
		strconv.FormatBool(r.InfectorSymptomatic),
		strconv.Itoa(r.StepExposure),
		strconv.Itoa(r.StepSymptoms),
		strconv.Itoa(r.StepRecover),
		strconv.FormatBool(r.InfectorAsymptomatic),
		r.InfectorAffiliation,
		f(r.CompSymptomsReport),
		f(r.CompQuarantineWhenSymptomatic),
		f(r.ComplianceMask),
		f(r.ComplianceIsolating),
		strconv.FormatBool(r.IsolatingBecauseOfSymptoms),
		strconv.FormatBool(r.IsolatingBecauseOfTracing),
		f(r.CompIsolateWhenNotified),
		f(r.CompPhysicalDistancing),
		strconv.Itoa(r.ContactRate),
		f(r.ProbHostsEvent),
		f(r.ProbAttendsEvent),
		r.InfectorMask,
		r.PlaceType,
		strconv.FormatInt(r.PlaceID, 10),
		strconv.FormatInt(r.NewlyInfectedID, 10),
		f(r.NewlyInfectedDistancing),
		r.NewlyInfectedMask,
	}
}
