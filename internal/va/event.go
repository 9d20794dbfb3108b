package va

import (
	"fmt"

	"github.com/openvital/smartva-bridge/internal/dhis"
)

// Data element UIDs of the verbal autopsy program, as loaded by the
// metadata package shipped alongside this service. The SID element is also
// what duplicate queries filter on.
const (
	ElementSID           = "FGUtGahDPFS"
	ElementICD10         = "aKc7PF1sLGe"
	ElementCauseText     = "wiOXbAkbqf2"
	ElementSex           = "ajKSQiCHtvs"
	ElementAgeYears      = "oPAVrZBZ51u"
	ElementBirthDate     = "uaz5R0ztynu"
	ElementDeathDate     = "LbRczSkTCTM"
	ElementInterviewDate = "Tt5TAZYbBgP"
	ElementFirstName     = "ZYKmQ9GPOaP"
	ElementSurname       = "sCGZMBJwJVa"
	ElementNationalID    = "MxTPuS9K7Ej"
)

const dateFormat = "2006-01-02"

// EventBuilder maps validated records onto registry event payloads.
type EventBuilder struct {
	Program     string
	RootOrgUnit string
	StoredBy    string
}

// Build derives the event payload for one record. The mapping is
// deterministic: the same record always yields the same payload. Records
// without a usable org unit post to the root org unit; the event date is
// the death date, falling back to the interview date. Records with
// neither produce an event the registry will reject, which the caller
// records as a failed submission.
func (b EventBuilder) Build(rec *Record) dhis.Event {
	ev := dhis.Event{
		Program:  b.Program,
		OrgUnit:  rec.OrgUnit,
		Status:   "COMPLETED",
		StoredBy: b.StoredBy,
	}
	if ev.OrgUnit == "" {
		ev.OrgUnit = b.RootOrgUnit
	}

	switch {
	case !rec.DeathDate.IsZero():
		ev.EventDate = rec.DeathDate.Format(dateFormat)
	case !rec.InterviewDate.IsZero():
		ev.EventDate = rec.InterviewDate.Format(dateFormat)
	}

	add := func(element, value string) {
		if value != "" {
			ev.DataValues = append(ev.DataValues, dhis.DataValue{DataElement: element, Value: value})
		}
	}

	add(ElementSID, rec.SID)
	add(ElementICD10, rec.Cause.ICD10)
	add(ElementCauseText, rec.Cause.Text)
	add(ElementSex, string(rec.Sex))
	if rec.AgeYears >= 0 {
		add(ElementAgeYears, formatAge(rec.AgeYears))
	}
	if !rec.BirthDate.IsZero() {
		add(ElementBirthDate, rec.BirthDate.Format(dateFormat))
	}
	if !rec.DeathDate.IsZero() {
		add(ElementDeathDate, rec.DeathDate.Format(dateFormat))
	}
	if !rec.InterviewDate.IsZero() {
		add(ElementInterviewDate, rec.InterviewDate.Format(dateFormat))
	}
	add(ElementFirstName, rec.Name)
	add(ElementSurname, rec.Surname)
	add(ElementNationalID, rec.NationalID)

	return ev
}

// formatAge renders age in years, keeping fractional ages (infants) but
// not trailing zeros.
func formatAge(age float64) string {
	if age == float64(int64(age)) {
		return fmt.Sprintf("%d", int64(age))
	}
	return fmt.Sprintf("%g", age)
}
