package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("testdata/config.yaml")
	require.NoError(t, err)

	// Explicit values survive.
	assert.Equal(t, "https://dhis2.moh.example.org", cfg.DHIS.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.DHIS.Timeout())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "RWA", cfg.SmartVA.Country)

	// Omitted values fall back to defaults.
	assert.Equal(t, "java", cfg.ODK.JavaPath)
	assert.Equal(t, 3, cfg.DHIS.MaxRetries)
	assert.Equal(t, 60*time.Minute, cfg.Schedule.Granularity())
	assert.Equal(t, 30*24*time.Hour, cfg.Schedule.MaxLookback())
	assert.Equal(t, "localhost:8085", cfg.Server.Addr())
	assert.True(t, cfg.Logging.RedactionEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.yaml")
	require.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DHIS_PASSWORD", "env-secret")
	t.Setenv("DATABASE_URL", "postgres://env-user:env-pass@db:5432/bridge")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")

	cfg, err := LoadFromEnv("testdata/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.DHIS.Password)
	assert.Equal(t, "postgres://env-user:env-pass@db:5432/bridge", cfg.Database.URL)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	// Untouched fields keep file values.
	assert.Equal(t, "admin", cfg.DHIS.Username)
}

func TestValidateAcceptsFixture(t *testing.T) {
	cfg, err := Load("testdata/config.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadUID(t *testing.T) {
	cfg, err := Load("testdata/config.yaml")
	require.NoError(t, err)

	for _, uid := range []string{"", "short", "0startsDigit", "has space 1", "waytoolonguid12"} {
		cfg.DHIS.ProgramUID = uid
		assert.Error(t, cfg.Validate(), "uid %q should be rejected", uid)
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg, err := Load("testdata/config.yaml")
	require.NoError(t, err)

	cfg.DHIS.Username = ""
	cfg.DHIS.Password = ""
	require.Error(t, cfg.Validate())

	// Token auth satisfies the requirement only with both client fields.
	cfg.DHIS.TokenURL = "https://dhis2.moh.example.org/uaa/oauth/token"
	require.Error(t, cfg.Validate())

	cfg.DHIS.ClientID = "bridge"
	cfg.DHIS.ClientSecret = "s3cret"
	require.NoError(t, cfg.Validate())
}

func TestValidateArchiveNeedsBucket(t *testing.T) {
	cfg, err := Load("testdata/config.yaml")
	require.NoError(t, err)

	cfg.Archive.Enabled = true
	cfg.Archive.Bucket = ""
	require.Error(t, cfg.Validate())

	cfg.Archive.Bucket = "va-archive"
	require.NoError(t, cfg.Validate())
}
