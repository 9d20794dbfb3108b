package va

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvital/smartva-bridge/internal/dhis"
)

func testBuilder() EventBuilder {
	return EventBuilder{
		Program:     "sv91bCroFFx",
		RootOrgUnit: "ImspTQPwCqd",
		StoredBy:    "smartva-bridge",
	}
}

func dataValue(ev dhis.Event, element string) (string, bool) {
	for _, dv := range ev.DataValues {
		if dv.DataElement == element {
			return dv.Value, true
		}
	}
	return "", false
}

func TestBuildEvent(t *testing.T) {
	rec := &Record{
		SID:        "VA_2026_0042",
		Name:       "Amina",
		Surname:    "Uwimana",
		NationalID: "1198870012345678",
		Sex:        SexFemale,
		AgeYears:   34,
		DeathDate:  time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		Cause:      Cause{Text: "Road Traffic", ICD10: "V89"},
	}

	ev := testBuilder().Build(rec)

	assert.Equal(t, "sv91bCroFFx", ev.Program)
	assert.Equal(t, "ImspTQPwCqd", ev.OrgUnit)
	assert.Equal(t, "2026-02-10", ev.EventDate)
	assert.Equal(t, "COMPLETED", ev.Status)
	assert.Equal(t, "smartva-bridge", ev.StoredBy)

	sid, ok := dataValue(ev, ElementSID)
	require.True(t, ok)
	assert.Equal(t, "VA_2026_0042", sid)

	icd, _ := dataValue(ev, ElementICD10)
	assert.Equal(t, "V89", icd)

	sex, _ := dataValue(ev, ElementSex)
	assert.Equal(t, "FEMALE", sex)

	age, _ := dataValue(ev, ElementAgeYears)
	assert.Equal(t, "34", age)
}

func TestBuildEventUsesRecordOrgUnit(t *testing.T) {
	rec := &Record{
		SID:     "VA_2026_0043",
		Cause:   Cause{Text: "Stroke", ICD10: "I64"},
		OrgUnit: "O6uvpzGd5pu",
	}

	ev := testBuilder().Build(rec)
	assert.Equal(t, "O6uvpzGd5pu", ev.OrgUnit)
}

func TestBuildEventDateFallsBackToInterview(t *testing.T) {
	rec := &Record{
		SID:           "VA_2026_0044",
		Cause:         Cause{Text: "Malaria", ICD10: "B54"},
		InterviewDate: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
	}

	ev := testBuilder().Build(rec)
	assert.Equal(t, "2026-02-14", ev.EventDate)
}

func TestBuildEventWithoutDatesLeavesEventDateEmpty(t *testing.T) {
	// The registry rejects these; that rejection is the recorded outcome.
	rec := &Record{
		SID:   "VA_2026_0045",
		Cause: Cause{Text: "Malaria", ICD10: "B54"},
	}

	ev := testBuilder().Build(rec)
	assert.Empty(t, ev.EventDate)
}

func TestBuildEventSkipsEmptyFields(t *testing.T) {
	rec := &Record{
		SID:      "VA_2026_0046",
		Cause:    Cause{Text: "TB", ICD10: "A16"},
		Sex:      SexUnknown,
		AgeYears: -1,
	}

	ev := testBuilder().Build(rec)

	_, hasName := dataValue(ev, ElementFirstName)
	assert.False(t, hasName)
	_, hasAge := dataValue(ev, ElementAgeYears)
	assert.False(t, hasAge)
	_, hasBirth := dataValue(ev, ElementBirthDate)
	assert.False(t, hasBirth)
}

func TestBuildEventFractionalAge(t *testing.T) {
	rec := &Record{
		SID:      "VA_2026_0047",
		Cause:    Cause{Text: "Birth Asphyxia", ICD10: "P21"},
		AgeYears: 0.25,
	}

	ev := testBuilder().Build(rec)
	age, ok := dataValue(ev, ElementAgeYears)
	require.True(t, ok)
	assert.Equal(t, "0.25", age)
}

func TestBuildEventDeterministic(t *testing.T) {
	rec := &Record{
		SID:       "VA_2026_0048",
		Cause:     Cause{Text: "Falls", ICD10: "W19"},
		DeathDate: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
	}

	b := testBuilder()
	assert.Equal(t, b.Build(rec), b.Build(rec))
}
