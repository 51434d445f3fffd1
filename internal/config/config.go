// Package config defines the immutable, validated configuration record the
// rest of the monitor is built around. Load reads it from a YAML file plus
// GEOFENCE_-prefixed environment overrides; cmd/geofence-monitor calls Load
// once and hands the record down.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LogLevel is the configured stdout log threshold
// (DEBUG/INFO/WARNING/ERROR/CRITICAL).
type LogLevel string

const (
	LogLevelDebug    LogLevel = "DEBUG"
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
)

// SlogLevel converts to the nearest log/slog.Level; CRITICAL has no slog
// equivalent so it maps to Error (slog's most severe built-in level).
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarning:
		return slog.LevelWarn
	case LogLevelError, LogLevelCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NotifierConfig is the Mailgun-style transport endpoint and credential
// the Notifier needs.
type NotifierConfig struct {
	MessagesEndpoint string `yaml:"messages_endpoint" validate:"required,url"`
	APIKey           string `yaml:"api_key" validate:"required"`
}

// GeofenceProbeConfig is the geofence probe's field bag.
type GeofenceProbeConfig struct {
	// IDRanges holds the raw, possibly-overlapping ranges as given on the
	// config (e.g. "2-8", "11"); flattening happens in internal/geofence.
	IDRanges         []string `yaml:"id_ranges" validate:"required,min=1"`
	StatusEndpoint   string   `yaml:"status_endpoint" validate:"required"`
	MaxQueryQPS      float64  `yaml:"max_query_qps" validate:"required,gt=0"`
	GoogleMapsAPIKey string   `yaml:"google_maps_api_key"`
}

// OKProbeConfig configures the secondary liveness probe. An empty
// HealthURL leaves the probe unregistered.
type OKProbeConfig struct {
	HealthURL string `yaml:"health_url" validate:"omitempty,url"`
}

// Config is the fully validated, immutable record the Scheduler, AlertBus
// and ControlSurface are constructed with.
type Config struct {
	MonitorName string `yaml:"monitor_name" validate:"required"`

	// MonitorURL is the externally reachable address of this monitor's
	// control surface, embedded in every alert so an operator can click
	// straight to /silence.
	MonitorURL string `yaml:"monitor_url" validate:"required,url"`

	// AlertEmails is deduplicated and order-preserved by Normalize.
	AlertEmails []string `yaml:"alert_emails" validate:"required,min=1,dive,email"`
	SenderEmail string   `yaml:"sender_email" validate:"required,email"`

	PollPeriodSeconds     float64 `yaml:"poll_period_s" validate:"required,gt=0"`
	MinPollPaddingSeconds float64 `yaml:"min_poll_padding_period_s" validate:"gte=0"`

	Notifier NotifierConfig `yaml:"notifier" validate:"required"`

	ListenPort int `yaml:"port" validate:"gte=0,lte=65535"`

	LogFilePrefix string   `yaml:"log_file_prefix" validate:"required"`
	LogLevel      LogLevel `yaml:"log" validate:"required,oneof=DEBUG INFO WARNING ERROR CRITICAL"`

	Geofence GeofenceProbeConfig `yaml:"geofence"`
	OKProbe  OKProbeConfig       `yaml:"ok_probe"`
}

var validate = validator.New()

// Normalize deduplicates AlertEmails by address while preserving the first
// occurrence's position.
func (c *Config) Normalize() {
	seen := make(map[string]bool, len(c.AlertEmails))
	out := c.AlertEmails[:0:0]
	for _, addr := range c.AlertEmails {
		key := strings.ToLower(strings.TrimSpace(addr))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	c.AlertEmails = out
}

// Validate checks field-level constraints via struct tags plus the
// cross-field rule that the padding stays below the poll period.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.MinPollPaddingSeconds >= c.PollPeriodSeconds {
		return fmt.Errorf(
			"min_poll_padding_period_s (%g) must be less than poll_period_s (%g)",
			c.MinPollPaddingSeconds, c.PollPeriodSeconds)
	}
	return nil
}

// Load reads a YAML config file, applies GEOFENCE_-prefixed environment
// overrides, normalizes, and validates. This is the only place the
// configuration is read from the filesystem or the environment; everything
// downstream receives
// the resulting *Config by value/reference only.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEOFENCE_MAILGUN_API_KEY"); v != "" {
		cfg.Notifier.APIKey = v
	}
	if v := os.Getenv("GEOFENCE_MAILGUN_MESSAGES_ENDPOINT"); v != "" {
		cfg.Notifier.MessagesEndpoint = v
	}
	if v := os.Getenv("GEOFENCE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ListenPort = n
		}
	}
	if v := os.Getenv("GEOFENCE_LOG"); v != "" {
		cfg.LogLevel = LogLevel(strings.ToUpper(v))
	}
}

// DumpExample writes an example configuration to w, backing the
// --dump-config flag.
func DumpExample(w *strings.Builder) error {
	example := Default()
	out, err := yaml.Marshal(example)
	if err != nil {
		return err
	}
	w.Write(out)
	return nil
}

// Default returns a Config with the stock defaults, useful as a starting
// point for --dump-config and for tests.
func Default() *Config {
	return &Config{
		MonitorName:           "Geofence monitor",
		MonitorURL:            "http://localhost:5000",
		AlertEmails:           []string{"oncall@skurt.com"},
		SenderEmail:           "engineering+geofence_monitor@skurt.com",
		PollPeriodSeconds:     5 * 60.0,
		MinPollPaddingSeconds: 10.0,
		Notifier: NotifierConfig{
			MessagesEndpoint: "https://api.mailgun.net/v3/example.mailgun.org/messages",
			APIKey:           "key-replace-me",
		},
		ListenPort:    5000,
		LogFilePrefix: "geofence_monitor",
		LogLevel:      LogLevelInfo,
		Geofence: GeofenceProbeConfig{
			IDRanges:       []string{"1-10"},
			StatusEndpoint: "http://skurt-interview-api.herokuapp.com/carStatus/%s",
			MaxQueryQPS:    1,
		},
		OKProbe: OKProbeConfig{
			HealthURL: "http://localhost:5001/ok",
		},
	}
}

// SortedEntries returns "key: value" lines, sorted by key ascending, for the
// ControlSurface's /args endpoint.
func (c *Config) SortedEntries() []string {
	entries := map[string]string{
		"monitor_name":              c.MonitorName,
		"monitor_url":               c.MonitorURL,
		"alert_emails":              strings.Join(c.AlertEmails, ", "),
		"sender_email":              c.SenderEmail,
		"poll_period_s":             fmt.Sprintf("%g", c.PollPeriodSeconds),
		"min_poll_padding_period_s": fmt.Sprintf("%g", c.MinPollPaddingSeconds),
		"mailgun_messages_endpoint": c.Notifier.MessagesEndpoint,
		"port":                      fmt.Sprintf("%d", c.ListenPort),
		"log_file_prefix":           c.LogFilePrefix,
		"log":                       string(c.LogLevel),
		"geofence.status_endpoint":  c.Geofence.StatusEndpoint,
		"geofence.max_query_qps":    fmt.Sprintf("%g", c.Geofence.MaxQueryQPS),
		"geofence.id_ranges":        strings.Join(c.Geofence.IDRanges, ","),
		"ok_probe.health_url":       c.OKProbe.HealthURL,
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, entries[k]))
	}
	return lines
}
