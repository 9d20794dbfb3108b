package va

import "fmt"

// Condition tags for validation failures, stable across releases because
// the failure store and its consumers filter on them.
const (
	CondMissingSID   = "missing_sid"
	CondUnknownCause = "unknown_cause"

	CondBadSex        = "bad_sex"
	CondBadAge        = "bad_age"
	CondBadDate       = "bad_date"
	CondBadOrgUnit    = "bad_orgunit"
	CondICD10Mismatch = "icd10_mismatch"
)

// ValidationError describes one problem found while parsing a classified
// record. Whether it is fatal or a warning is decided by which slice the
// parser returns it in.
type ValidationError struct {
	Condition string
	Field     string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Condition, e.Field, e.Message)
}

// ConditionOf extracts the condition tag from a validation error, or
// "error" for anything else.
func ConditionOf(err error) string {
	if ve, ok := err.(*ValidationError); ok {
		return ve.Condition
	}
	return "error"
}
