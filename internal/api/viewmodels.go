package api

import (
	"database/sql"
	"time"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/models"
	"github.com/lox/hoteldash/internal/store"
)

// RowView is one record of the raw data table.
type RowView struct {
	Name        string   `json:"name"`
	Nights      int      `json:"nights"`
	Persons     int      `json:"persons"`
	PriceDate   string   `json:"price_date"`
	Weekday     string   `json:"weekday,omitempty"`
	ScrapeTime  string   `json:"scrape_time"`
	Price       *float64 `json:"price"`
	ReviewScore *float64 `json:"review_score"`
	Distance    *float64 `json:"distance"`
}

func newRowView(rec models.Record) RowView {
	v := RowView{
		Name:        rec.HotelName,
		Nights:      rec.Nights,
		Persons:     rec.Persons,
		PriceDate:   rec.PriceDateRaw,
		Weekday:     rec.Weekday.String,
		ScrapeTime:  string(rec.ScrapeTime),
		Price:       nullable(rec.Price),
		ReviewScore: nullable(rec.ReviewScore),
		Distance:    nullable(rec.Distance),
	}
	if rec.PriceDate.Valid {
		v.PriceDate = rec.PriceDate.Time.Format(analytics.DateLayout)
	}
	return v
}

func newRowViews(records []models.Record) []RowView {
	rows := make([]RowView, 0, len(records))
	for _, rec := range records {
		rows = append(rows, newRowView(rec))
	}
	return rows
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// IndexData is the dashboard page model.
type IndexData struct {
	Options   analytics.Options
	Selection analytics.Selection
	Dashboard analytics.Dashboard
	Rows      []RowView
	Query     string
	// Form values echo the resolved selection back into the controls.
	Form      FormValues
	Narrative bool
}

// FormValues holds the current control values as strings.
type FormValues struct {
	Hotels   map[string]bool
	Nights   int
	Persons  int
	PriceMin float64
	PriceMax float64
	DateFrom string
	DateTo   string
	DateMin  string
	DateMax  string
}

func newFormValues(opts analytics.Options, sel analytics.Selection) FormValues {
	f := FormValues{
		Hotels:   make(map[string]bool, len(sel.Hotels)),
		PriceMin: opts.Price.Min,
		PriceMax: opts.Price.Max,
	}
	for _, h := range sel.Hotels {
		f.Hotels[h] = true
	}
	if sel.Nights != nil {
		f.Nights = *sel.Nights
	}
	if sel.Persons != nil {
		f.Persons = *sel.Persons
	}
	if sel.Price != nil {
		f.PriceMin, f.PriceMax = sel.Price.Min, sel.Price.Max
	}
	if opts.Dates != nil {
		f.DateMin = opts.Dates.From.Format(analytics.DateLayout)
		f.DateMax = opts.Dates.To.Format(analytics.DateLayout)
	}
	dates := opts.Dates
	if sel.Dates != nil {
		dates = sel.Dates
	}
	if dates != nil {
		f.DateFrom = dates.From.Format(analytics.DateLayout)
		f.DateTo = dates.To.Format(analytics.DateLayout)
	}
	return f
}

// NoDataPage is rendered when the data directory yields no records.
type NoDataPage struct {
	DataDir string
	Failed  []FileFailure
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status     string                    `json:"status"`
	Records    int                       `json:"records"`
	Files      int                       `json:"files"`
	LoadedAt   *time.Time                `json:"loaded_at,omitempty"`
	LastRunID  string                    `json:"last_run_id,omitempty"`
	Failed     []FileFailure             `json:"failed,omitempty"`
	RecentFail []FileFailure             `json:"recent_failures,omitempty"`
	Daily      []store.LoadHealthSummary `json:"daily,omitempty"`
	Errors     []string                  `json:"errors,omitempty"`
}

// FileFailure describes one file excluded from a load.
type FileFailure struct {
	Path  string     `json:"path"`
	Error string     `json:"error"`
	At    *time.Time `json:"at,omitempty"`
}
