package analytics

import (
	"github.com/lox/hoteldash/internal/models"
)

// Dashboard bundles every aggregate the presentation layer renders for one selection.
type Dashboard struct {
	TableKey  string         `json:"table_key"`
	Selection Selection      `json:"selection"`
	Empty     bool           `json:"empty"`
	KPIs      KPIs           `json:"kpis"`
	Summary   Summary        `json:"summary"`
	Dates     []DatePoint    `json:"dates"`
	Weekdays  []WeekdayPoint `json:"weekdays"`
}

// Build filters the table and computes all aggregates. It also returns the
// filtered rows sorted by date for tabular display.
func Build(table *models.BaseTable, sel Selection) (Dashboard, []models.Record) {
	subset := Apply(table.Records, sel)
	d := Dashboard{
		TableKey:  table.Key,
		Selection: sel,
		Empty:     len(subset) == 0,
		KPIs:      ComputeKPIs(subset),
		Summary:   Summarize(subset, sel),
		Dates:     DateSeries(subset),
		Weekdays:  WeekdaySeries(subset),
	}
	return d, SortByDate(subset)
}
