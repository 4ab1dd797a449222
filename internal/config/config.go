// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/listing-notifier/internal/notify"
	"github.com/donaldgifford/listing-notifier/internal/resilience"
	"github.com/donaldgifford/listing-notifier/internal/source"
	"github.com/donaldgifford/listing-notifier/internal/telemetry"
	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

// Source renderers.
const (
	RendererHTTP   = "http"
	RendererChrome = "chrome"
)

// DefaultAlertMinScore holds failure reports back until more than five
// consecutive failures under the default policy.
const DefaultAlertMinScore = 5 * resilience.DefaultFailureWeight

// Config is the top-level application configuration.
type Config struct {
	Queries       []domain.Query      `yaml:"queries"`
	Poll          PollConfig          `yaml:"poll"`
	Resilience    ResilienceConfig    `yaml:"resilience"`
	Alerts        AlertsConfig        `yaml:"alerts"`
	Message       MessageConfig       `yaml:"message"`
	Snapshot      SnapshotConfig      `yaml:"snapshot"`
	Source        SourceConfig        `yaml:"source"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Server        ServerConfig        `yaml:"server"`
	Telemetry     telemetry.Config    `yaml:"telemetry"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// PollConfig defines the loop cadence.
type PollConfig struct {
	Interval     time.Duration `yaml:"interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// ResilienceConfig defines the failure score weights.
type ResilienceConfig struct {
	FailureWeight int `yaml:"failure_weight"`
	DecayWeight   int `yaml:"decay_weight"`
	FatalCeiling  int `yaml:"fatal_ceiling"`
}

// Policy returns the resilience policy these settings describe.
func (r ResilienceConfig) Policy() resilience.Policy {
	return resilience.Policy{
		FailureWeight: r.FailureWeight,
		DecayWeight:   r.DecayWeight,
		FatalCeiling:  r.FatalCeiling,
	}
}

// AlertsConfig defines failure reporting.
type AlertsConfig struct {
	Recipient string `yaml:"recipient"` // default: email sender
	// MinScore holds reports back until the failure score exceeds it.
	// Unset means DefaultAlertMinScore.
	MinScore                *int `yaml:"min_score"`
	ReportTransient         bool `yaml:"report_transient"`
	RepeatSuppressThreshold int  `yaml:"repeat_suppress_threshold"`
}

// MessageConfig defines notification rendering.
type MessageConfig struct {
	CharLimit        int  `yaml:"char_limit"`        // discord: at most notify.DiscordCharLimit
	HeadLines        int  `yaml:"head_lines"`
	DescriptionChars int  `yaml:"description_chars"` // discord: at most notify.DiscordDescriptionChars
	ExcludeLinks     bool `yaml:"exclude_links"`
}

// RenderOptions returns the renderer settings.
func (m MessageConfig) RenderOptions() notify.RenderOptions {
	return notify.RenderOptions{
		CharLimit:        m.CharLimit,
		HeadLines:        m.HeadLines,
		DescriptionChars: m.DescriptionChars,
		ExcludeLinks:     m.ExcludeLinks,
	}
}

// SnapshotConfig defines where the seen record is loaded from and saved to.
type SnapshotConfig struct {
	LoadPath string `yaml:"load_path"`
	SavePath string `yaml:"save_path"` // default: load_path
}

// SourceConfig defines the classifieds site adapter.
type SourceConfig struct {
	BaseURL      string          `yaml:"base_url"`
	ListingURL   string          `yaml:"listing_url"`
	DefaultState string          `yaml:"default_state"`
	UserAgent    string          `yaml:"user_agent"`
	Renderer     string          `yaml:"renderer"` // http, chrome
	ChromePath   string          `yaml:"chrome_path"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines outbound fetch rate limiting.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Email   EmailConfig   `yaml:"email"`
	Discord DiscordConfig `yaml:"discord"`
}

// EmailConfig defines SMTP delivery settings.
type EmailConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"` // default: derived from from
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	FromName string        `yaml:"from_name"`
	To       string        `yaml:"to"`
	Mode     string        `yaml:"mode"` // tls, starttls, none
	Timeout  time.Duration `yaml:"timeout"`
}

// SMTPConfig returns the notifier settings.
func (e *EmailConfig) SMTPConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     e.Host,
		Port:     e.Port,
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		FromName: e.FromName,
		Mode:     e.Mode,
		Timeout:  e.Timeout,
	}
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file"`   // append here instead of stderr
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads and decodes a config file without applying defaults. Callers
// layering overrides on top call Finalize afterwards, so derived defaults
// such as snapshot.save_path follow the overridden values.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Decode(data)
}

// Parse decodes YAML config content, then applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode expands environment variables in YAML config content and decodes
// it as written.
func Decode(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration with every default applied and no queries.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Finalize applies defaults and validates. Call it again after overriding
// fields from flags or the environment.
func (cfg *Config) Finalize() error {
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// AlertMinScore returns the configured threshold or its default.
func (cfg *Config) AlertMinScore() int {
	if cfg.Alerts.MinScore == nil {
		return DefaultAlertMinScore
	}
	return *cfg.Alerts.MinScore
}

func applyDefaults(cfg *Config) {
	applyPollDefaults(&cfg.Poll)
	applyResilienceDefaults(&cfg.Resilience)
	applySnapshotDefaults(&cfg.Snapshot)
	applyMessageDefaults(&cfg.Message, &cfg.Notifications.Discord)
	applySourceDefaults(&cfg.Source)
	applyEmailDefaults(&cfg.Notifications.Email)
	applyAlertsDefaults(&cfg.Alerts, &cfg.Notifications.Email)
	applyServerDefaults(&cfg.Server)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyLoggingDefaults(&cfg.Logging)
}

func applyPollDefaults(p *PollConfig) {
	if p.Interval == 0 {
		p.Interval = 10 * time.Minute
	}
	if p.FetchTimeout == 0 {
		p.FetchTimeout = 30 * time.Second
	}
}

func applyResilienceDefaults(r *ResilienceConfig) {
	if r.FailureWeight == 0 {
		r.FailureWeight = resilience.DefaultFailureWeight
	}
	if r.DecayWeight == 0 {
		r.DecayWeight = resilience.DefaultDecayWeight
	}
	if r.FatalCeiling == 0 {
		r.FatalCeiling = resilience.DefaultFatalCeiling
	}
}

func applySnapshotDefaults(s *SnapshotConfig) {
	if s.SavePath == "" {
		s.SavePath = s.LoadPath
	}
}

// applyMessageDefaults keeps every message within Discord's content limit
// when Discord is a target. Larger explicit limits are lowered to fit.
func applyMessageDefaults(m *MessageConfig, d *DiscordConfig) {
	if !d.Enabled {
		return
	}
	if m.CharLimit == 0 || m.CharLimit > notify.DiscordCharLimit {
		m.CharLimit = notify.DiscordCharLimit
	}
	if m.DescriptionChars == 0 || m.DescriptionChars > notify.DiscordDescriptionChars {
		m.DescriptionChars = notify.DiscordDescriptionChars
	}
}

func applySourceDefaults(s *SourceConfig) {
	if s.BaseURL == "" {
		s.BaseURL = source.DefaultSearchURL
	}
	if s.ListingURL == "" {
		s.ListingURL = source.DefaultListingURL
	}
	if s.DefaultState == "" {
		s.DefaultState = source.DefaultState
	}
	if s.Renderer == "" {
		s.Renderer = RendererHTTP
	}
	if s.RateLimit.PerSecond == 0 {
		s.RateLimit.PerSecond = 1
	}
	if s.RateLimit.Burst == 0 {
		s.RateLimit.Burst = 2
	}
}

func applyEmailDefaults(e *EmailConfig) {
	if e.Host == "" {
		if host, port, ok := notify.ServerForAddress(e.From); ok {
			e.Host = host
			if e.Port == 0 {
				e.Port = port
			}
		}
	}
	if e.Port == 0 {
		e.Port = 587
	}
	if e.Mode == "" {
		e.Mode = notify.SMTPModeStartTLS
	}
	if e.Username == "" {
		e.Username = e.From
	}
	if e.Timeout == 0 {
		e.Timeout = 30 * time.Second
	}
}

func applyAlertsDefaults(a *AlertsConfig, e *EmailConfig) {
	if a.Recipient == "" && e.Enabled {
		a.Recipient = e.From
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyTelemetryDefaults(t *telemetry.Config) {
	if t.ServiceName == "" {
		t.ServiceName = telemetry.DefaultServiceName
	}
	if t.MetricInterval == 0 {
		t.MetricInterval = telemetry.DefaultMetricInterval
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = 1
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	for i := range cfg.Queries {
		if cfg.Queries[i].Normalize().Terms == "" {
			errs = append(errs, fmt.Errorf("queries[%d].terms is required", i))
		}
	}

	if cfg.Poll.Interval < time.Second {
		errs = append(errs, fmt.Errorf("poll.interval must be at least 1s (got %s)", cfg.Poll.Interval))
	}
	if cfg.Poll.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("poll.fetch_timeout must not be negative"))
	}

	if err := cfg.Resilience.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("resilience: %w", err))
	}
	if cfg.Alerts.RepeatSuppressThreshold < 0 {
		errs = append(errs, fmt.Errorf("alerts.repeat_suppress_threshold must not be negative"))
	}

	if cfg.Message.CharLimit < 0 || cfg.Message.HeadLines < 0 || cfg.Message.DescriptionChars < 0 {
		errs = append(errs, fmt.Errorf("message limits must not be negative"))
	}

	switch cfg.Source.Renderer {
	case RendererHTTP, RendererChrome:
	default:
		errs = append(errs, fmt.Errorf(
			"source.renderer must be one of: http, chrome (got %q)", cfg.Source.Renderer,
		))
	}
	if cfg.Source.RateLimit.PerSecond < 0 || cfg.Source.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("source.rate_limit values must not be negative"))
	}

	errs = append(errs, validateEmail(&cfg.Notifications.Email)...)

	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(errs, fmt.Errorf(
			"notifications.discord.webhook_url is required when discord is enabled",
		))
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535 (got %d)", cfg.Server.Port))
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		errs = append(errs, fmt.Errorf("telemetry.endpoint is required when telemetry is enabled"))
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be one of: text, json (got %q)", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateEmail(e *EmailConfig) []error {
	if !e.Enabled {
		return nil
	}

	var errs []error
	if e.From == "" {
		errs = append(errs, fmt.Errorf("notifications.email.from is required when email is enabled"))
	}
	if e.To == "" {
		errs = append(errs, fmt.Errorf("notifications.email.to is required when email is enabled"))
	}
	if e.Host == "" {
		errs = append(errs, fmt.Errorf(
			"notifications.email.host is required when it cannot be derived from the sender address",
		))
	}
	switch e.Mode {
	case notify.SMTPModeTLS, notify.SMTPModeStartTLS, notify.SMTPModeNone:
	default:
		errs = append(errs, fmt.Errorf(
			"notifications.email.mode must be one of: tls, starttls, none (got %q)", e.Mode,
		))
	}
	return errs
}
