package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the operator-facing configuration loaded once at startup.
// It is distinct from the gateway document: the document is the mutable
// provider list the proxy routes with, while Settings covers everything
// an operator sets and forgets (paths, timeouts, telemetry, schedules).
type Settings struct {
	// DataDir is the directory holding the gateway document, the stats
	// file, and the request-history database.
	DataDir string `yaml:"data_dir"`

	// Admin configures the management HTTP server.
	Admin AdminSettings `yaml:"admin"`

	// Upstream configures outbound provider calls.
	Upstream UpstreamSettings `yaml:"upstream"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetrySettings `yaml:"telemetry"`

	// History configures the durable request-history archive.
	History HistorySettings `yaml:"history"`

	// Updates configures the release update checker.
	Updates UpdateSettings `yaml:"updates"`
}

// AdminSettings configures the management server.
type AdminSettings struct {
	// ListenAddress is the address for the management API, metrics and
	// event stream. Default: "127.0.0.1:12346"
	ListenAddress string `yaml:"listen_address"`
}

// UpstreamSettings configures outbound provider calls.
type UpstreamSettings struct {
	// AttemptTimeout bounds a single provider attempt. A timed-out
	// attempt is treated as a transport failure and falls through to
	// the next candidate. Zero disables the timeout.
	// Default: 60s
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// TelemetrySettings configures observability.
type TelemetrySettings struct {
	Logging LoggingSettings `yaml:"logging"`
	Metrics MetricsSettings `yaml:"metrics"`
}

// LoggingSettings configures structured logging.
type LoggingSettings struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsSettings configures the Prometheus endpoint on the admin server.
type MetricsSettings struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the scrape endpoint path. Default: "/metrics"
	Path string `yaml:"path"`
}

// HistorySettings configures the SQLite request-history archive.
type HistorySettings struct {
	// Enabled controls whether request logs are archived to SQLite in
	// addition to the JSON stats file. Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database path. Relative paths are resolved
	// under DataDir. Default: "history.db"
	Path string `yaml:"path"`

	// RetentionDays is how long archived logs are kept.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for retention pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// UpdateSettings configures the release update checker.
type UpdateSettings struct {
	// Enabled controls whether the update-check endpoint is available.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ReleaseURL is the latest-release API endpoint to query.
	ReleaseURL string `yaml:"release_url"`
}

// Settings defaults.
const (
	DefaultDataDir            = "data"
	DefaultAdminListenAddress = "127.0.0.1:12346"
	DefaultAttemptTimeout     = 60 * time.Second
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultHistoryPath        = "history.db"
	DefaultRetentionDays      = 90
	DefaultPruneSchedule      = "0 3 * * *"
	DefaultReleaseURL         = "https://api.github.com/repos/vibehub/gateway/releases/latest"
)

// DefaultSettings returns the settings used when no settings file exists.
func DefaultSettings() Settings {
	s := Settings{}
	ApplySettingsDefaults(&s)
	s.Telemetry.Metrics.Enabled = true
	s.History.Enabled = true
	s.Updates.Enabled = true
	return s
}

// ApplySettingsDefaults fills zero-valued fields with defaults. It is
// idempotent and safe to call multiple times. Boolean fields default to
// false here; LoadSettings flips the enabled flags to true when their
// section is entirely absent from the file.
func ApplySettingsDefaults(s *Settings) {
	if s.DataDir == "" {
		s.DataDir = DefaultDataDir
	}
	if s.Admin.ListenAddress == "" {
		s.Admin.ListenAddress = DefaultAdminListenAddress
	}
	if s.Upstream.AttemptTimeout == 0 {
		s.Upstream.AttemptTimeout = DefaultAttemptTimeout
	}
	if s.Telemetry.Logging.Level == "" {
		s.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if s.Telemetry.Logging.Format == "" {
		s.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if s.Telemetry.Metrics.Path == "" {
		s.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if s.History.Path == "" {
		s.History.Path = DefaultHistoryPath
	}
	if s.History.RetentionDays == 0 {
		s.History.RetentionDays = DefaultRetentionDays
	}
	if s.History.PruneSchedule == "" {
		s.History.PruneSchedule = DefaultPruneSchedule
	}
	if s.Updates.ReleaseURL == "" {
		s.Updates.ReleaseURL = DefaultReleaseURL
	}
}

// rawSettings mirrors Settings with pointers for the sections whose
// enabled flags default to true, so "section absent" and "explicitly
// disabled" can be told apart.
type rawSettings struct {
	DataDir   string            `yaml:"data_dir"`
	Admin     AdminSettings     `yaml:"admin"`
	Upstream  UpstreamSettings  `yaml:"upstream"`
	Telemetry struct {
		Logging LoggingSettings  `yaml:"logging"`
		Metrics *MetricsSettings `yaml:"metrics"`
	} `yaml:"telemetry"`
	History *HistorySettings `yaml:"history"`
	Updates *UpdateSettings  `yaml:"updates"`
}

// LoadSettings reads settings from a YAML file, applies defaults and
// VIBEHUB_* environment overrides, and validates the result. A missing
// file is not an error: settings are optional and default-complete.
func LoadSettings(path string) (Settings, error) {
	var raw rawSettings

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Fall through with the zero value: everything defaults.
	case err != nil:
		return Settings{}, fmt.Errorf("failed to read settings file %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Settings{}, fmt.Errorf("failed to parse settings file %q: %w", path, err)
		}
	}

	s := Settings{
		DataDir:  raw.DataDir,
		Admin:    raw.Admin,
		Upstream: raw.Upstream,
	}
	s.Telemetry.Logging = raw.Telemetry.Logging
	if raw.Telemetry.Metrics != nil {
		s.Telemetry.Metrics = *raw.Telemetry.Metrics
	} else {
		s.Telemetry.Metrics.Enabled = true
	}
	if raw.History != nil {
		s.History = *raw.History
	} else {
		s.History.Enabled = true
	}
	if raw.Updates != nil {
		s.Updates = *raw.Updates
	} else {
		s.Updates.Enabled = true
	}

	ApplySettingsDefaults(&s)
	applySettingsEnvOverrides(&s)

	if err := validateSettings(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// applySettingsEnvOverrides applies VIBEHUB_* environment variables on
// top of file-based settings. Environment always wins.
func applySettingsEnvOverrides(s *Settings) {
	if val := os.Getenv("VIBEHUB_DATA_DIR"); val != "" {
		s.DataDir = val
	}
	if val := os.Getenv("VIBEHUB_ADMIN_LISTEN_ADDRESS"); val != "" {
		s.Admin.ListenAddress = val
	}
	if val := os.Getenv("VIBEHUB_UPSTREAM_ATTEMPT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			s.Upstream.AttemptTimeout = d
		}
	}
	if val := os.Getenv("VIBEHUB_LOGGING_LEVEL"); val != "" {
		s.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("VIBEHUB_LOGGING_FORMAT"); val != "" {
		s.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("VIBEHUB_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			s.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("VIBEHUB_HISTORY_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			s.History.Enabled = b
		}
	}
	if val := os.Getenv("VIBEHUB_HISTORY_PATH"); val != "" {
		s.History.Path = val
	}
	if val := os.Getenv("VIBEHUB_UPDATES_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			s.Updates.Enabled = b
		}
	}
	if val := os.Getenv("VIBEHUB_UPDATES_RELEASE_URL"); val != "" {
		s.Updates.ReleaseURL = val
	}
}

func validateSettings(s *Settings) error {
	var errs []FieldError

	switch s.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", s.Telemetry.Logging.Level),
		})
	}

	switch s.Telemetry.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text; got %q", s.Telemetry.Logging.Format),
		})
	}

	if s.Upstream.AttemptTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.attempt_timeout",
			Message: "must not be negative",
		})
	}

	if s.History.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "history.retention_days",
			Message: "must not be negative",
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
