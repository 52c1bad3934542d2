package analytics

import (
	"database/sql"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lox/hoteldash/internal/models"
)

// Weekdays in presentation order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DatePoint holds the metrics of one (date, scrape time) partition.
type DatePoint struct {
	Date          time.Time         `json:"date"`
	ScrapeTime    models.ScrapeTime `json:"scrape_time"`
	Rows          int               `json:"rows"`
	MeanPrice     *float64          `json:"mean_price,omitempty"`
	ADR           float64           `json:"adr"`
	OccupancyRate float64           `json:"occupancy_rate"`
	RevPAR        float64           `json:"revpar"`
}

// WeekdayPoint is the mean price of one (weekday, scrape time) partition.
type WeekdayPoint struct {
	Weekday    string            `json:"weekday"`
	ScrapeTime models.ScrapeTime `json:"scrape_time"`
	Rows       int               `json:"rows"`
	MeanPrice  float64           `json:"mean_price"`
}

type dateKey struct {
	date time.Time
	st   models.ScrapeTime
}

// DateSeries partitions records by price date and scrape time and computes
// ADR, occupancy rate and RevPAR per partition. Rows without a date are
// skipped and empty partitions are not emitted. Points are ordered by date,
// then scrape time.
func DateSeries(records []models.Record) []DatePoint {
	groups := make(map[dateKey][]models.Record)
	for _, r := range records {
		if !r.PriceDate.Valid {
			continue
		}
		k := dateKey{date: r.PriceDate.Time, st: r.ScrapeTime}
		groups[k] = append(groups[k], r)
	}

	points := make([]DatePoint, 0, len(groups))
	for k, g := range groups {
		adr := ADR(g)
		occ := OccupancyRate(g)
		p := DatePoint{
			Date:          k.date,
			ScrapeTime:    k.st,
			Rows:          len(g),
			ADR:           adr,
			OccupancyRate: occ,
			RevPAR:        RevPAR(adr, occ),
		}
		if m, ok := mean(g, func(r models.Record) sql.NullFloat64 { return r.Price }); ok {
			p.MeanPrice = &m
		}
		points = append(points, p)
	}

	sort.Slice(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].ScrapeTime.Rank() < points[j].ScrapeTime.Rank()
	})
	return points
}

type weekdayKey struct {
	weekday string
	st      models.ScrapeTime
}

// WeekdaySeries computes the unrounded mean price per weekday and scrape
// time. Partitions without any price are omitted. Points run Monday to
// Sunday regardless of the order the data arrived in.
func WeekdaySeries(records []models.Record) []WeekdayPoint {
	prices := make(map[weekdayKey][]float64)
	for _, r := range records {
		if !r.Weekday.Valid || !r.Price.Valid {
			continue
		}
		k := weekdayKey{weekday: r.Weekday.String, st: r.ScrapeTime}
		prices[k] = append(prices[k], r.Price.Float64)
	}

	rank := make(map[string]int, len(Weekdays))
	for i, d := range Weekdays {
		rank[d] = i
	}

	points := make([]WeekdayPoint, 0, len(prices))
	for k, vals := range prices {
		points = append(points, WeekdayPoint{
			Weekday:    k.weekday,
			ScrapeTime: k.st,
			Rows:       len(vals),
			MeanPrice:  stat.Mean(vals, nil),
		})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Weekday != points[j].Weekday {
			return rank[points[i].Weekday] < rank[points[j].Weekday]
		}
		return points[i].ScrapeTime.Rank() < points[j].ScrapeTime.Rank()
	})
	return points
}
