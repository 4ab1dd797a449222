package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// SeenListings returns a timeseries panel showing remembered ids per query.
func SeenListings() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Seen Listings").
		Description("Listing ids remembered per query").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(18).
		WithTarget(PromQuery(job("listing_notifier_seen_listings"), "{{query}}", "A")).
		FillOpacity(0).
		LineWidth(2).
		Legend(TableLegend("last", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// SnapshotSaveErrors returns a stat panel showing failed snapshot writes.
func SnapshotSaveErrors() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Snapshot Write Errors (24h)").
		Description("Failed writes of the seen-listings snapshot").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(StatWidth).
		WithTarget(PromQuery(
			`increase(`+job("listing_notifier_snapshot_save_errors_total")+`[24h])`,
			"", "A",
		)).
		Thresholds(ThresholdsGreenYellowRed(1, 3)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeNone)
}
