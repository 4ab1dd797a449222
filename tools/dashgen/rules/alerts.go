package rules

// AlertRules returns the operational alerts for listing-notifier.
func AlertRules() PrometheusRule {
	return newRule("listing-notifier-alerts", RuleGroup{
		Name: "listing-notifier-alerts",
		Rules: []Rule{
			alert("ListingNotifierDown",
				`absent(up{job="listing-notifier"})`, "5m", "critical",
				"Listing notifier is down",
				"The listing-notifier job has been absent for more than 5 minutes."),
			alert("ListingNotifierNotReady",
				`listing_notifier_readyz_up == 0`, "30m", "warning",
				"Listing notifier has not finished a poll iteration",
				"The readiness probe has reported starting for more than 30 minutes."),
			alert("ListingNotifierStalled",
				`time() - listing_notifier_last_cycle_timestamp > 3600`, "10m", "warning",
				"No poll iteration in the last hour",
				"The poll loop has not completed an iteration for more than an hour."),
			alert("ListingNotifierErrorScoreHigh",
				`listing_notifier_resilience_score > 50`, "0m", "warning",
				"Poll loop error score is above half the fatal ceiling",
				"Repeated failures are accumulating; the loop stops once the score exceeds 100."),
			alert("ListingNotifierFetchErrors",
				`sum(listing_notifier:fetch_errors:rate5m) > 0`, "30m", "warning",
				"Search page fetches keep failing",
				"Fetch errors have been reported for more than 30 minutes."),
			alert("ListingNotifierDeliveryFailures",
				`sum(listing_notifier:notification_failures:rate5m) > 0`, "10m", "warning",
				"Notification delivery failures detected",
				"Email or Discord deliveries have been failing for more than 10 minutes."),
			alert("ListingNotifierSnapshotWriteFailing",
				`increase(listing_notifier_snapshot_save_errors_total[1h]) > 0`, "0m", "warning",
				"Seen-listings snapshot could not be written",
				"A restart may re-notify listings already sent."),
		},
	})
}
