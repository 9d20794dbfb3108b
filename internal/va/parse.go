package va

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// knownColumns are consumed by the parser; anything else lands in Extra.
var knownColumns = map[string]bool{
	"sid":            true,
	"cause":          true,
	"icd10":          true,
	"sex":            true,
	"age":            true,
	"birth_date":     true,
	"death_date":     true,
	"interview_date": true,
	"name":           true,
	"surname":        true,
	"national_id":    true,
	"orgunit":        true,
}

var orgUnitPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{10}$`)

const maxPlausibleAge = 130

// Parse validates one raw classifier row into a Record. It returns the
// record plus warnings when the row is usable, or nil plus every fatal
// error found when it is not; fatals are collected, not short-circuited,
// so one failure-store write can carry all of them. Pure: no I/O.
func Parse(raw RawRecord) (*Record, []error, []error) {
	var fatals, warnings []error

	rec := &Record{
		SID:        strings.TrimSpace(raw.Get("sid")),
		Name:       strings.TrimSpace(raw.Get("name")),
		Surname:    strings.TrimSpace(raw.Get("surname")),
		NationalID: strings.TrimSpace(raw.Get("national_id")),
		Sex:        SexUnknown,
		AgeYears:   -1,
	}

	if rec.SID == "" {
		fatals = append(fatals, &ValidationError{
			Condition: CondMissingSID,
			Field:     "sid",
			Message:   "study identifier missing or blank",
		})
	}

	causeText := strings.TrimSpace(raw.Get("cause"))
	if causeText == "" {
		fatals = append(fatals, &ValidationError{
			Condition: CondUnknownCause,
			Field:     "cause",
			Message:   "cause of death missing",
		})
	} else if cause, ok := LookupCause(causeText); ok {
		rec.Cause = cause
		if icd := strings.TrimSpace(raw.Get("icd10")); icd != "" && !strings.EqualFold(icd, cause.ICD10) {
			warnings = append(warnings, &ValidationError{
				Condition: CondICD10Mismatch,
				Field:     "icd10",
				Message:   fmt.Sprintf("classifier column says %s, cause list says %s", icd, cause.ICD10),
			})
		}
	} else {
		fatals = append(fatals, &ValidationError{
			Condition: CondUnknownCause,
			Field:     "cause",
			Message:   fmt.Sprintf("unknown cause %q", causeText),
		})
	}

	if v := strings.TrimSpace(raw.Get("sex")); v != "" {
		sex, ok := parseSex(v)
		if !ok {
			warnings = append(warnings, &ValidationError{
				Condition: CondBadSex,
				Field:     "sex",
				Message:   fmt.Sprintf("unrecognized code %q", v),
			})
		}
		rec.Sex = sex
	}

	if v := strings.TrimSpace(raw.Get("age")); v != "" {
		age, err := strconv.ParseFloat(v, 64)
		switch {
		case err != nil:
			warnings = append(warnings, &ValidationError{
				Condition: CondBadAge,
				Field:     "age",
				Message:   fmt.Sprintf("not a number: %q", v),
			})
		case age < 0 || age > maxPlausibleAge:
			warnings = append(warnings, &ValidationError{
				Condition: CondBadAge,
				Field:     "age",
				Message:   fmt.Sprintf("implausible value %v", age),
			})
		default:
			rec.AgeYears = age
		}
	}

	parseDateInto := func(field string, dst *time.Time) {
		v := strings.TrimSpace(raw.Get(field))
		if v == "" {
			return
		}
		t, ok := parseDate(v)
		if !ok {
			warnings = append(warnings, &ValidationError{
				Condition: CondBadDate,
				Field:     field,
				Message:   fmt.Sprintf("unparseable date %q", v),
			})
			return
		}
		*dst = t
	}
	parseDateInto("birth_date", &rec.BirthDate)
	parseDateInto("death_date", &rec.DeathDate)
	parseDateInto("interview_date", &rec.InterviewDate)

	if v := strings.TrimSpace(raw.Get("orgunit")); v != "" {
		if orgUnitPattern.MatchString(v) {
			rec.OrgUnit = v
		} else {
			warnings = append(warnings, &ValidationError{
				Condition: CondBadOrgUnit,
				Field:     "orgunit",
				Message:   fmt.Sprintf("not an org unit UID: %q", v),
			})
		}
	}

	for _, h := range raw.Headers() {
		if knownColumns[h] {
			continue
		}
		if v := raw.Get(h); v != "" {
			if rec.Extra == nil {
				rec.Extra = map[string]string{}
			}
			rec.Extra[h] = v
		}
	}

	if len(fatals) > 0 {
		return nil, fatals, warnings
	}
	return rec, nil, warnings
}

// parseSex understands the classifier's numeric codes (1 male, 2 female,
// 3/8/9 undetermined) as well as plain words.
func parseSex(v string) (Sex, bool) {
	switch strings.ToLower(v) {
	case "1", "male", "m":
		return SexMale, true
	case "2", "female", "f":
		return SexFemale, true
	case "3", "8", "9", "unknown":
		return SexUnknown, true
	}
	return SexUnknown, false
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

func parseDate(v string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
