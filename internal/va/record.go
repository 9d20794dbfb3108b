// Package va holds the verbal autopsy domain: raw classifier output rows,
// the validated record type, cause-of-death code resolution, and the
// mapping of records onto registry event payloads.
package va

import (
	"bytes"
	"encoding/json"
	"time"
)

// RawRecord is one row of classifier output: field name to string value,
// preserving the file's column order so audit copies reproduce the row
// as it appeared.
type RawRecord struct {
	headers []string
	values  map[string]string
}

// NewRawRecord builds a RawRecord from a header row and a data row. Short
// rows leave trailing fields empty; surplus fields are dropped.
func NewRawRecord(headers, fields []string) RawRecord {
	values := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(fields) {
			values[h] = fields[i]
		} else {
			values[h] = ""
		}
	}
	return RawRecord{headers: headers, values: values}
}

// Get returns the value for a field name, or "" if the column is absent.
func (r RawRecord) Get(key string) string {
	return r.values[key]
}

// Has reports whether the column exists in the header, regardless of value.
func (r RawRecord) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Headers returns the column names in file order.
func (r RawRecord) Headers() []string {
	return r.headers
}

// SID returns the record's study identifier, if any.
func (r RawRecord) SID() string {
	return r.values["sid"]
}

// MarshalJSON emits the fields as a JSON object in column order.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range r.headers {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[h])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Sex is the deceased's sex as the registry's option set codes it.
type Sex string

const (
	SexMale    Sex = "MALE"
	SexFemale  Sex = "FEMALE"
	SexUnknown Sex = "UNKNOWN"
)

// Record is one validated verbal autopsy: identifiers, demographics, and
// the resolved cause of death. A Record exists only if parsing produced no
// fatal errors; it is immutable afterwards.
type Record struct {
	SID        string
	Name       string
	Surname    string
	NationalID string

	Sex      Sex
	AgeYears float64 // -1 when unknown

	BirthDate     time.Time // zero when unknown
	DeathDate     time.Time
	InterviewDate time.Time

	Cause Cause

	// OrgUnit is the registry org unit UID carried by the export, when the
	// collection form was preloaded with one. Empty means the root org unit.
	OrgUnit string

	// Extra holds columns the parser does not recognize. Kept for forward
	// compatibility and audit; never used by the pipeline itself.
	Extra map[string]string
}
