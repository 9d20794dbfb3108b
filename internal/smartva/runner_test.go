package smartva

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvital/smartva-bridge/internal/config"
)

func testConfig(t *testing.T) config.SmartVAConfig {
	return config.SmartVAConfig{
		Executable:     "/opt/smartva/smartva",
		OutputDir:      t.TempDir(),
		Country:        "RWA",
		HIV:            true,
		Malaria:        true,
		HCE:            false,
		TimeoutMinutes: 1,
	}
}

func TestArgs(t *testing.T) {
	r := NewRunner(testConfig(t))

	args := r.args("/tmp/export.csv", "/tmp/out")

	assert.Equal(t, []string{
		"--country", "RWA",
		"--hiv", "True",
		"--malaria", "True",
		"--hce", "False",
		"--figures", "False",
		"/tmp/export.csv",
		"/tmp/out",
	}, args)
}

func TestClassifyMissingBinary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Executable = "/nonexistent/smartva"
	r := NewRunner(cfg)

	_, err := r.Classify(context.Background(), "/tmp/export.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smartva failed")
}

func TestBoolArg(t *testing.T) {
	assert.Equal(t, "True", boolArg(true))
	assert.Equal(t, "False", boolArg(false))
}
