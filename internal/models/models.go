package models

import (
	"database/sql"
	"time"
)

type ScrapeTime string

const (
	ScrapeMorning ScrapeTime = "Morning"
	ScrapeEvening ScrapeTime = "Evening"
	ScrapeUnknown ScrapeTime = "Unknown"
)

// ScrapeTimes lists every scrape time in presentation order.
var ScrapeTimes = []ScrapeTime{ScrapeMorning, ScrapeEvening, ScrapeUnknown}

// Rank orders scrape times for presentation. Unrecognised values sort last.
func (st ScrapeTime) Rank() int {
	for i, v := range ScrapeTimes {
		if v == st {
			return i
		}
	}
	return len(ScrapeTimes)
}

// RawRecord is one data row as read from a snapshot file, before coercion.
type RawRecord struct {
	Name        string
	Nights      string
	Persons     string
	Price       string
	ReviewScore string
	Distance    string
	PriceDate   string
	ScrapeTime  ScrapeTime
	SourceFile  string
}

// Record is one normalized (hotel, stay configuration, scrape) observation.
type Record struct {
	HotelName    string
	Nights       int
	Persons      int
	Price        sql.NullFloat64 // null: unavailable at scrape time
	ReviewScore  sql.NullFloat64
	Distance     sql.NullFloat64
	PriceDateRaw string
	PriceDate    sql.NullTime // calendar date at midnight UTC
	Weekday      sql.NullString
	ScrapeTime   ScrapeTime
	SourceFile   string
}

// BaseTable is the immutable union of every record ingested from one file set.
// Callers must not modify Records after construction.
type BaseTable struct {
	Key      string
	Files    []string
	Records  []Record
	LoadedAt time.Time
}

func (t *BaseTable) Empty() bool {
	return t == nil || len(t.Records) == 0
}

func (t *BaseTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}
