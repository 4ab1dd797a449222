package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/listing-notifier/internal/notify"
	"github.com/donaldgifford/listing-notifier/internal/source"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		envVars   map[string]string
		wantErr   string
		checkFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid minimal config",
			yaml: `
queries:
  - terms: iphone
  - terms: road bike
    max_price: 500
    city: Provo
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				require.Len(t, cfg.Queries, 2)
				assert.Equal(t, "iphone", cfg.Queries[0].Terms)
				assert.Equal(t, 500, cfg.Queries[1].MaxPrice)
				assert.Equal(t, "Provo", cfg.Queries[1].City)
			},
		},
		{
			name: "defaults applied for optional fields",
			yaml: `
queries:
  - terms: iphone
snapshot:
  load_path: /var/lib/listing-notifier/seen.json
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 10*time.Minute, cfg.Poll.Interval)
				assert.Equal(t, 30*time.Second, cfg.Poll.FetchTimeout)
				assert.Equal(t, 10, cfg.Resilience.FailureWeight)
				assert.Equal(t, 1, cfg.Resilience.DecayWeight)
				assert.Equal(t, 100, cfg.Resilience.FatalCeiling)
				assert.Equal(t, DefaultAlertMinScore, cfg.AlertMinScore())
				assert.Equal(t, "/var/lib/listing-notifier/seen.json", cfg.Snapshot.SavePath)
				assert.Equal(t, source.DefaultSearchURL, cfg.Source.BaseURL)
				assert.Equal(t, source.DefaultListingURL, cfg.Source.ListingURL)
				assert.Equal(t, "UT", cfg.Source.DefaultState)
				assert.Equal(t, RendererHTTP, cfg.Source.Renderer)
				assert.InDelta(t, 1.0, cfg.Source.RateLimit.PerSecond, 0)
				assert.Equal(t, 2, cfg.Source.RateLimit.Burst)
				assert.Equal(t, notify.SMTPModeStartTLS, cfg.Notifications.Email.Mode)
				assert.Equal(t, 587, cfg.Notifications.Email.Port)
				assert.Empty(t, cfg.Alerts.Recipient)
				assert.False(t, cfg.Server.Enabled)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "listing-notifier", cfg.Telemetry.ServiceName)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
			},
		},
		{
			name: "env var substitution",
			yaml: `
notifications:
  email:
    enabled: true
    from: notifier@example.com
    host: smtp.example.com
    to: me@example.com
    password: "${TEST_SMTP_PASSWORD}"
`,
			envVars: map[string]string{
				"TEST_SMTP_PASSWORD": "secret123",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "secret123", cfg.Notifications.Email.Password)
			},
		},
		{
			name: "email server derived from sender",
			yaml: `
notifications:
  email:
    enabled: true
    from: someone@gmail.com
    to: me@example.com
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				e := cfg.Notifications.Email
				assert.Equal(t, "smtp.gmail.com", e.Host)
				assert.Equal(t, 587, e.Port)
				assert.Equal(t, "someone@gmail.com", e.Username)
				assert.Equal(t, "someone@gmail.com", cfg.Alerts.Recipient)
			},
		},
		{
			name: "discord sets a char limit that fits its content limit",
			yaml: `
notifications:
  discord:
    enabled: true
    webhook_url: https://discord.example/hook
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, notify.DiscordCharLimit, cfg.Message.CharLimit)
				assert.Equal(t, notify.DiscordContentLimit-5, cfg.Message.CharLimit)
				assert.Equal(t, notify.DiscordDescriptionChars, cfg.Message.DescriptionChars)
			},
		},
		{
			name: "discord lowers larger explicit limits",
			yaml: `
message:
  char_limit: 5000
  description_chars: 4000
notifications:
  discord:
    enabled: true
    webhook_url: https://discord.example/hook
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, notify.DiscordCharLimit, cfg.Message.CharLimit)
				assert.Equal(t, notify.DiscordDescriptionChars, cfg.Message.DescriptionChars)
			},
		},
		{
			name: "discord keeps smaller explicit limits",
			yaml: `
message:
  char_limit: 160
  description_chars: 80
notifications:
  discord:
    enabled: true
    webhook_url: https://discord.example/hook
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 160, cfg.Message.CharLimit)
				assert.Equal(t, 80, cfg.Message.DescriptionChars)
			},
		},
		{
			name: "message limits unset without discord",
			yaml: `
message:
  char_limit: 5000
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 5000, cfg.Message.CharLimit)
				assert.Zero(t, cfg.Message.DescriptionChars)
			},
		},
		{
			name: "alert min score zero is kept",
			yaml: `
alerts:
  min_score: 0
  report_transient: true
  repeat_suppress_threshold: 3
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Zero(t, cfg.AlertMinScore())
				assert.True(t, cfg.Alerts.ReportTransient)
				assert.Equal(t, 3, cfg.Alerts.RepeatSuppressThreshold)
			},
		},
		{
			name: "query without terms",
			yaml: `
queries:
  - terms: iphone
  - category: Electronics
`,
			wantErr: "queries[1].terms is required",
		},
		{
			name: "interval too short",
			yaml: `
poll:
  interval: 500ms
`,
			wantErr: "poll.interval must be at least 1s",
		},
		{
			name: "negative decay weight",
			yaml: `
resilience:
  decay_weight: -1
`,
			wantErr: "decay weight must not be negative",
		},
		{
			name: "invalid renderer",
			yaml: `
source:
  renderer: phantomjs
`,
			wantErr: `source.renderer must be one of: http, chrome (got "phantomjs")`,
		},
		{
			name: "email enabled without recipient",
			yaml: `
notifications:
  email:
    enabled: true
    from: someone@gmail.com
`,
			wantErr: "notifications.email.to is required",
		},
		{
			name: "email host not derivable",
			yaml: `
notifications:
  email:
    enabled: true
    from: someone@example.org
    to: me@example.com
`,
			wantErr: "notifications.email.host is required",
		},
		{
			name: "invalid email mode",
			yaml: `
notifications:
  email:
    enabled: true
    from: someone@gmail.com
    to: me@example.com
    mode: ssl
`,
			wantErr: `notifications.email.mode must be one of: tls, starttls, none (got "ssl")`,
		},
		{
			name: "discord enabled without webhook",
			yaml: `
notifications:
  discord:
    enabled: true
`,
			wantErr: "notifications.discord.webhook_url is required",
		},
		{
			name: "telemetry enabled without endpoint",
			yaml: `
telemetry:
  enabled: true
`,
			wantErr: "telemetry.endpoint is required",
		},
		{
			name: "invalid log format",
			yaml: `
logging:
  format: xml
`,
			wantErr: `logging.format must be one of: text, json (got "xml")`,
		},
		{
			name:    "invalid YAML",
			yaml:    `{{{not valid yaml`,
			wantErr: "parsing config YAML",
		},
		{
			name: "full config with overrides",
			yaml: `
queries:
  - terms: iphone
    category: Electronics
    sub_category: Cell Phones
    min_price: 100
    max_price: 400
    zip: "84604"
    miles: 25
    reverse: true
    include_sold: true
    expand_search: true
    per_page: 48
poll:
  interval: 5m
  fetch_timeout: 10s
resilience:
  failure_weight: 20
  decay_weight: 2
  fatal_ceiling: 200
alerts:
  recipient: ops@example.com
  min_score: 40
message:
  char_limit: 1500
  head_lines: 3
  description_chars: 200
  exclude_links: true
snapshot:
  load_path: seen.json
  save_path: seen-out.json
source:
  base_url: http://localhost:9000/search/
  listing_url: http://localhost:9000/listing/
  default_state: ID
  user_agent: listing-notifier-test
  renderer: chrome
  chrome_path: /usr/bin/chromium
  rate_limit:
    per_second: 0.5
    burst: 1
notifications:
  email:
    enabled: true
    host: smtp.example.com
    port: 465
    username: smtp-user
    from: notifier@example.com
    from_name: Listing Notifier
    to: me@example.com
    mode: tls
    timeout: 15s
  discord:
    enabled: true
    webhook_url: https://discord.com/api/webhooks/123
server:
  enabled: true
  host: "127.0.0.1"
  port: 9090
  read_timeout: 60s
  write_timeout: 60s
telemetry:
  enabled: true
  endpoint: otel-collector:4317
  insecure: true
  sample_ratio: 0.25
logging:
  level: debug
  format: json
  file: /var/log/listing-notifier.log
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				require.Len(t, cfg.Queries, 1)
				q := cfg.Queries[0]
				assert.Equal(t, "Cell Phones", q.SubCategory)
				assert.Equal(t, "84604", q.Zip)
				assert.True(t, q.Reverse)
				assert.True(t, q.IncludeSold)
				assert.True(t, q.ExpandSearch)
				assert.Equal(t, 48, q.PerPage)

				assert.Equal(t, 5*time.Minute, cfg.Poll.Interval)
				assert.Equal(t, 10*time.Second, cfg.Poll.FetchTimeout)
				assert.Equal(t, 200, cfg.Resilience.Policy().FatalCeiling)
				assert.Equal(t, "ops@example.com", cfg.Alerts.Recipient)
				assert.Equal(t, 40, cfg.AlertMinScore())

				ro := cfg.Message.RenderOptions()
				assert.Equal(t, 1500, ro.CharLimit)
				assert.Equal(t, 3, ro.HeadLines)
				assert.Equal(t, 200, ro.DescriptionChars)
				assert.True(t, ro.ExcludeLinks)

				assert.Equal(t, "seen-out.json", cfg.Snapshot.SavePath)
				assert.Equal(t, RendererChrome, cfg.Source.Renderer)
				assert.Equal(t, "ID", cfg.Source.DefaultState)
				assert.InDelta(t, 0.5, cfg.Source.RateLimit.PerSecond, 0)

				smtp := cfg.Notifications.Email.SMTPConfig()
				assert.Equal(t, "smtp.example.com", smtp.Host)
				assert.Equal(t, 465, smtp.Port)
				assert.Equal(t, "smtp-user", smtp.Username)
				assert.Equal(t, notify.SMTPModeTLS, smtp.Mode)
				assert.Equal(t, 15*time.Second, smtp.Timeout)

				assert.True(t, cfg.Notifications.Discord.Enabled)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "otel-collector:4317", cfg.Telemetry.Endpoint)
				assert.InDelta(t, 0.25, cfg.Telemetry.SampleRatio, 0)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "/var/log/listing-notifier.log", cfg.Logging.File)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Only parallelize tests that don't modify env vars.
			if len(tt.envVars) == 0 {
				t.Parallel()
			}

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := Load(path)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`
poll:
  interval: 1ms
source:
  renderer: lynx
logging:
  format: xml
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll.interval")
	assert.Contains(t, err.Error(), "source.renderer")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Empty(t, cfg.Queries)
	assert.Equal(t, 10*time.Minute, cfg.Poll.Interval)
	require.NoError(t, cfg.Finalize())
}

func TestFinalize_AfterOverride(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Notifications.Email.Enabled = true
	cfg.Notifications.Email.From = "someone@yahoo.com"
	cfg.Notifications.Email.To = "me@example.com"
	cfg.Notifications.Email.Host = ""

	require.NoError(t, cfg.Finalize())
	assert.Equal(t, "smtp.mail.yahoo.com", cfg.Notifications.Email.Host)
	assert.Equal(t, "someone@yahoo.com", cfg.Alerts.Recipient)
}

func TestDecode_LeavesDefaultsUnset(t *testing.T) {
	t.Parallel()

	cfg, err := Decode([]byte("snapshot:\n  load_path: a.json\n"))
	require.NoError(t, err)
	assert.Equal(t, "a.json", cfg.Snapshot.LoadPath)
	assert.Empty(t, cfg.Snapshot.SavePath)
	assert.Zero(t, cfg.Poll.Interval)

	cfg.Snapshot.LoadPath = "b.json"
	require.NoError(t, cfg.Finalize())
	assert.Equal(t, "b.json", cfg.Snapshot.SavePath)
}

func TestRead_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "reading config file")
}
