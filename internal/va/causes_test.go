package va

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCause(t *testing.T) {
	cause, ok := LookupCause("Road Traffic")
	require.True(t, ok)
	assert.Equal(t, "V89", cause.ICD10)
	assert.Equal(t, "Road Traffic", cause.Text)
}

func TestLookupCauseNormalizes(t *testing.T) {
	for _, text := range []string{"road traffic", "ROAD TRAFFIC", "  Road   Traffic  "} {
		cause, ok := LookupCause(text)
		require.True(t, ok, "text %q should resolve", text)
		assert.Equal(t, "V89", cause.ICD10)
	}
}

func TestLookupCauseUnknown(t *testing.T) {
	_, ok := LookupCause("Dragon Attack")
	assert.False(t, ok)

	_, ok = LookupCause("")
	assert.False(t, ok)
}

func TestCauseTableCoversAllAgeModules(t *testing.T) {
	// One representative per classifier module.
	for text, icd := range map[string]string{
		"IHD - Acute Myocardial Infarction": "I21", // adult
		"Malnutrition":                      "E46", // child
		"Birth Asphyxia":                    "P21", // neonate
		"Stillbirth":                        "P95",
	} {
		cause, ok := LookupCause(text)
		require.True(t, ok, "cause %q", text)
		assert.Equal(t, icd, cause.ICD10)
	}
}
