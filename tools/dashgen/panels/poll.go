package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// LastCycle returns a stat panel showing time since the last poll iteration.
func LastCycle() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Last Iteration").
		Description("Time since the last completed poll iteration").
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		WithTarget(PromQuery(`time() - `+job("listing_notifier_last_cycle_timestamp"), "", "A")).
		Unit("s").
		Thresholds(ThresholdsGreenYellowRed(1800, 3600)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeNone)
}

// CycleRate returns a timeseries panel showing iterations and failed
// iterations per hour.
func CycleRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Iterations / h").
		Description("Poll iterations run and failed per hour").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(9).
		WithTarget(PromQuery(`listing_notifier:cycles:rate5m * 3600`, "iterations", "A")).
		WithTarget(PromQuery(`listing_notifier:cycle_failures:rate5m * 3600`, "failures", "B")).
		FillOpacity(10).
		LineWidth(2).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// CycleDuration returns a timeseries panel showing the p95 iteration duration.
func CycleDuration() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Iteration Duration (p95)").
		Description("95th percentile poll iteration duration").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(9).
		WithTarget(PromQuery(
			`histogram_quantile(0.95, sum(rate(`+job("listing_notifier_cycle_duration_seconds_bucket")+`[5m])) by (le))`,
			"p95",
			"A",
		)).
		Unit("s").
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}
