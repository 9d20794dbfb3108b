package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactName(t *testing.T) {
	assert.Equal(t, "Ad***", RedactName("Adaeze Okonkwo"))
	assert.Equal(t, "***", RedactName("Jo"))
	assert.Equal(t, "***", RedactName(""))
	assert.Equal(t, "Ch***", RedactName("  Chinwe  "))
}

func TestLogRedactsPIIFields(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "debug", RedactPII: true, Writer: &buf})
	defer Setup(Options{Level: "info", RedactPII: true})

	Info("record parsed",
		"sid", "VA_20260101_0001",
		"name", "Adaeze Okonkwo",
		"national_id", "29184756102",
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "VA_20260101_0001", entry["sid"])
	assert.Equal(t, "Ad***", entry["name"])
	assert.Equal(t, "29***", entry["national_id"])
}

func TestComponentTagAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "warn", RedactPII: false, Writer: &buf})
	defer Setup(Options{Level: "info", RedactPII: true})

	log := Component("pipeline")
	log.Info("suppressed below level")
	require.Zero(t, buf.Len())

	log.Warn("tick skipped", "reason", "run in progress")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "run in progress", entry["reason"])
}
