// Package config loads and validates the bridge configuration from a YAML
// file with environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the bridge.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	DHIS     DHISConfig     `yaml:"dhis"`
	ODK      ODKConfig      `yaml:"odk"`
	SmartVA  SmartVAConfig  `yaml:"smartva"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Server   ServerConfig   `yaml:"server"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	// RedactPII defaults to true; set false only on air-gapped debug setups.
	RedactPII *bool `yaml:"redact_pii"`
}

// RedactionEnabled reports whether PII redaction is on (default true).
func (c LoggingConfig) RedactionEnabled() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// DHISConfig holds the destination DHIS2 instance settings.
type DHISConfig struct {
	BaseURL    string `yaml:"base_url" validate:"required,url"`
	APIVersion string `yaml:"api_version"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	// Client-credentials token auth, used instead of basic auth when set.
	TokenURL     string `yaml:"token_url" validate:"omitempty,url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	ProgramUID     string `yaml:"program_uid" validate:"required,dhisuid"`
	RootOrgUnitUID string `yaml:"root_orgunit_uid" validate:"required,dhisuid"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`
}

// Timeout returns the configured request timeout as a duration.
func (c DHISConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ODKConfig holds the ODK Briefcase export settings.
type ODKConfig struct {
	JavaPath     string `yaml:"java_path"`
	BriefcaseJar string `yaml:"briefcase_jar" validate:"required"`
	StorageDir   string `yaml:"storage_dir" validate:"required"`
	ExportDir    string `yaml:"export_dir" validate:"required"`
	FormID       string `yaml:"form_id" validate:"required"`
	AggregateURL string `yaml:"aggregate_url" validate:"required,url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`

	TimeoutMinutes int `yaml:"timeout_minutes"`
}

// Timeout returns the maximum duration allowed for a briefcase export.
func (c ODKConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// SmartVAConfig holds the external classifier invocation settings.
type SmartVAConfig struct {
	Executable string `yaml:"executable" validate:"required"`
	OutputDir  string `yaml:"output_dir" validate:"required"`
	Country    string `yaml:"country" validate:"required,iso3166_1_alpha3"`
	HIV        bool   `yaml:"hiv"`
	Malaria    bool   `yaml:"malaria"`
	HCE        bool   `yaml:"hce"`

	TimeoutMinutes int `yaml:"timeout_minutes"`
}

// Timeout returns the maximum duration allowed for one classification run.
func (c SmartVAConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// DatabaseConfig holds the Postgres connection for the failure store and
// run cursor.
type DatabaseConfig struct {
	URL             string `yaml:"url" validate:"required"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the optional duplicate-cache settings. Empty Addr
// disables Redis; the detector falls back to its in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ScheduleConfig controls the recurring import runs and the time-window
// resolver.
type ScheduleConfig struct {
	IntervalHours      int `yaml:"interval_hours"`
	OverlapMinutes     int `yaml:"overlap_minutes"`
	GranularityMinutes int `yaml:"granularity_minutes"`
	MaxLookbackDays    int `yaml:"max_lookback_days"`
}

// Interval returns the gap between scheduled runs.
func (c ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// Overlap returns how far a window reaches back into the previous one.
func (c ScheduleConfig) Overlap() time.Duration {
	return time.Duration(c.OverlapMinutes) * time.Minute
}

// Granularity returns the truncation unit for window ends.
func (c ScheduleConfig) Granularity() time.Duration {
	return time.Duration(c.GranularityMinutes) * time.Minute
}

// MaxLookback returns the deepest a first-run window may reach.
func (c ScheduleConfig) MaxLookback() time.Duration {
	return time.Duration(c.MaxLookbackDays) * 24 * time.Hour
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ArchiveConfig holds the optional S3 audit-archive settings. Endpoint set
// to a MinIO-style URL makes on-prem deployments work without AWS.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// Load reads and parses the configuration file, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.DHIS.APIVersion == "" {
		cfg.DHIS.APIVersion = "40"
	}
	if cfg.DHIS.TimeoutSeconds == 0 {
		cfg.DHIS.TimeoutSeconds = 30
	}
	if cfg.DHIS.MaxRetries == 0 {
		cfg.DHIS.MaxRetries = 3
	}
	if cfg.ODK.JavaPath == "" {
		cfg.ODK.JavaPath = "java"
	}
	if cfg.ODK.TimeoutMinutes == 0 {
		cfg.ODK.TimeoutMinutes = 30
	}
	if cfg.SmartVA.TimeoutMinutes == 0 {
		cfg.SmartVA.TimeoutMinutes = 60
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 5
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}
	if cfg.Schedule.IntervalHours == 0 {
		cfg.Schedule.IntervalHours = 3
	}
	if cfg.Schedule.OverlapMinutes == 0 {
		cfg.Schedule.OverlapMinutes = 30
	}
	if cfg.Schedule.GranularityMinutes == 0 {
		cfg.Schedule.GranularityMinutes = 60
	}
	if cfg.Schedule.MaxLookbackDays == 0 {
		cfg.Schedule.MaxLookbackDays = 30
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8085
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "eu-west-1"
	}
}

// LoadFromEnv loads configuration with environment variable overrides. A
// .env file (if present) is read first, so secrets can live in .env locally
// and in real env vars on servers.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DHIS_BASE_URL"); v != "" {
		cfg.DHIS.BaseURL = v
	}
	if v := os.Getenv("DHIS_USERNAME"); v != "" {
		cfg.DHIS.Username = v
	}
	if v := os.Getenv("DHIS_PASSWORD"); v != "" {
		cfg.DHIS.Password = v
	}
	if v := os.Getenv("DHIS_CLIENT_ID"); v != "" {
		cfg.DHIS.ClientID = v
	}
	if v := os.Getenv("DHIS_CLIENT_SECRET"); v != "" {
		cfg.DHIS.ClientSecret = v
	}
	if v := os.Getenv("ODK_USERNAME"); v != "" {
		cfg.ODK.Username = v
	}
	if v := os.Getenv("ODK_PASSWORD"); v != "" {
		cfg.ODK.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ARCHIVE_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("ARCHIVE_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

var uidPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{10}$`)

// Validate checks the hard constraints the pipeline cannot run without.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("dhisuid", func(fl validator.FieldLevel) bool {
		return uidPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		if invalid, ok := err.(*validator.InvalidValidationError); ok {
			return invalid
		}
		for _, fe := range err.(validator.ValidationErrors) {
			return fmt.Errorf("config: field %s failed %q validation", fe.Namespace(), fe.Tag())
		}
	}

	if c.DHIS.TokenURL == "" && (c.DHIS.Username == "" || c.DHIS.Password == "") {
		return fmt.Errorf("config: dhis needs username/password or token_url credentials")
	}
	if c.DHIS.TokenURL != "" && (c.DHIS.ClientID == "" || c.DHIS.ClientSecret == "") {
		return fmt.Errorf("config: dhis token_url set but client_id/client_secret missing")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("config: archive enabled but bucket not set")
	}
	return nil
}
