// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/donaldgifford/listing-notifier/tools/dashgen/panels"
)

// BuildOverview constructs the listing-notifier overview dashboard.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("Listing Notifier Overview").
		Uid("listing-notifier-overview").
		Tags([]string{"listing-notifier"}).
		Refresh("1m").
		Time("now-24h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthzStat()).
		WithPanel(panels.ReadyzStat()).
		WithPanel(panels.ResilienceGauge()).
		WithPanel(panels.UptimeStat()))

	b.WithRow(dashboard.NewRowBuilder("Poll Loop").
		WithPanel(panels.LastCycle()).
		WithPanel(panels.CycleRate()).
		WithPanel(panels.CycleDuration()))

	b.WithRow(dashboard.NewRowBuilder("Source").
		WithPanel(panels.ListingsRate()).
		WithPanel(panels.FetchErrors()).
		WithPanel(panels.FetchDuration()))

	b.WithRow(dashboard.NewRowBuilder("Notifications").
		WithPanel(panels.NotificationsSent()).
		WithPanel(panels.NotificationLatency()).
		WithPanel(panels.NotificationFailures()).
		WithPanel(panels.AlertsSent()))

	b.WithRow(dashboard.NewRowBuilder("Seen Listings").
		WithPanel(panels.SeenListings()).
		WithPanel(panels.SnapshotSaveErrors()))

	b.WithRow(dashboard.NewRowBuilder("Status Server").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}
