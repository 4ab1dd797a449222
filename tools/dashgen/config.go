package main

import "errors"

// KnownMetrics is the set of metric names exported by listing-notifier
// plus recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"listing_notifier_http_request_duration_seconds_bucket": true,
	"listing_notifier_http_requests_total":                  true,

	// Health metrics.
	"listing_notifier_healthz_up": true,
	"listing_notifier_readyz_up":  true,

	// Poll loop metrics.
	"listing_notifier_cycles_total":                 true,
	"listing_notifier_cycle_failures_total":         true,
	"listing_notifier_cycle_duration_seconds_bucket": true,
	"listing_notifier_resilience_score":             true,
	"listing_notifier_last_cycle_timestamp":         true,

	// Source metrics.
	"listing_notifier_fetch_errors_total":            true,
	"listing_notifier_fetch_duration_seconds_bucket": true,
	"listing_notifier_listings_fetched_total":        true,
	"listing_notifier_listings_new_total":            true,

	// Notification metrics.
	"listing_notifier_notifications_sent_total":             true,
	"listing_notifier_notification_failures_total":          true,
	"listing_notifier_notification_duration_seconds_bucket": true,
	"listing_notifier_alerts_sent_total":                    true,

	// Snapshot metrics.
	"listing_notifier_seen_listings":             true,
	"listing_notifier_snapshot_save_errors_total": true,

	// Recording rules.
	"listing_notifier:http_requests:rate5m":         true,
	"listing_notifier:http_errors:rate5m":           true,
	"listing_notifier:cycles:rate5m":                true,
	"listing_notifier:cycle_failures:rate5m":        true,
	"listing_notifier:fetch_errors:rate5m":          true,
	"listing_notifier:listings_new:rate5m":          true,
	"listing_notifier:notification_failures:rate5m": true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
