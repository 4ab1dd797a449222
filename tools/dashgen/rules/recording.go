package rules

// RecordingRules returns the pre-computed rates used by the dashboard and
// the alert rules.
func RecordingRules() PrometheusRule {
	return newRule("listing-notifier-recording-rules", RuleGroup{
		Name: "listing-notifier-recording",
		Rules: []Rule{
			{
				Record: "listing_notifier:http_requests:rate5m",
				Expr:   `sum(rate(listing_notifier_http_requests_total[5m]))`,
			},
			{
				Record: "listing_notifier:http_errors:rate5m",
				Expr:   `sum(rate(listing_notifier_http_requests_total{status=~"5.."}[5m]))`,
			},
			{
				Record: "listing_notifier:cycles:rate5m",
				Expr:   `rate(listing_notifier_cycles_total[5m])`,
			},
			{
				Record: "listing_notifier:cycle_failures:rate5m",
				Expr:   `rate(listing_notifier_cycle_failures_total[5m])`,
			},
			{
				Record: "listing_notifier:fetch_errors:rate5m",
				Expr:   `sum by (kind) (rate(listing_notifier_fetch_errors_total[5m]))`,
			},
			{
				Record: "listing_notifier:listings_new:rate5m",
				Expr:   `rate(listing_notifier_listings_new_total[5m])`,
			},
			{
				Record: "listing_notifier:notification_failures:rate5m",
				Expr:   `sum by (channel) (rate(listing_notifier_notification_failures_total[5m]))`,
			},
		},
	})
}
