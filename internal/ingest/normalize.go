package ingest

import (
	"database/sql"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lox/hoteldash/internal/models"
)

// dayFirstLayouts are tried in order. Ambiguous numeric dates are read day/month/year;
// year-first ISO forms are unambiguous and accepted as well.
var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"02/01/06",
	"2/1/06",
	"2006-01-02",
	"2006/01/02",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"Mon 2 Jan 2006",
	"Monday, 2 January 2006",
	// Month-first fallbacks only match when the day-first reading is impossible,
	// e.g. "06/15/2024".
	"01/02/2006",
	"1/2/2006",
}

// timeSuffixes may trail any of the date layouts.
var timeSuffixes = []string{
	"",
	" 15:04",
	" 15:04:05",
	"T15:04:05",
	"T15:04:05Z07:00",
}

// Normalize turns a raw row into a typed record. It never fails: fields that
// cannot be coerced become null.
func Normalize(raw models.RawRecord) models.Record {
	rec := models.Record{
		HotelName:    strings.TrimSpace(raw.Name),
		Nights:       parseCount(raw.Nights),
		Persons:      parseCount(raw.Persons),
		Price:        ParseDecimal(raw.Price),
		ReviewScore:  ParseDecimal(raw.ReviewScore),
		Distance:     ParseDecimal(raw.Distance),
		PriceDateRaw: raw.PriceDate,
		ScrapeTime:   raw.ScrapeTime,
		SourceFile:   raw.SourceFile,
	}
	if rec.ScrapeTime == "" {
		rec.ScrapeTime = models.ScrapeUnknown
	}

	if d, ok := ParseDayFirstDate(raw.PriceDate); ok {
		rec.PriceDate = sql.NullTime{Time: d, Valid: true}
		rec.Weekday = sql.NullString{String: d.Weekday().String(), Valid: true}
	}
	return rec
}

// Denormalize renders a record back into the raw textual form Normalize accepts.
// Normalize(Denormalize(r)) == r for any record produced by Normalize.
func Denormalize(rec models.Record) models.RawRecord {
	return models.RawRecord{
		Name:        rec.HotelName,
		Nights:      formatCount(rec.Nights),
		Persons:     formatCount(rec.Persons),
		Price:       formatDecimal(rec.Price),
		ReviewScore: formatDecimal(rec.ReviewScore),
		Distance:    formatDecimal(rec.Distance),
		PriceDate:   rec.PriceDateRaw,
		ScrapeTime:  rec.ScrapeTime,
		SourceFile:  rec.SourceFile,
	}
}

// ParseDecimal parses s as a finite decimal. Empty, non-numeric, NaN and
// infinite inputs yield null.
func ParseDecimal(s string) sql.NullFloat64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// ParseDayFirstDate parses s with day-first precedence and truncates the
// result to a calendar date at midnight UTC.
func ParseDayFirstDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		for _, suffix := range timeSuffixes {
			t, err := time.Parse(layout+suffix, s)
			if err != nil {
				continue
			}
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseCount accepts integral values such as "2" or "2.0". Anything else is 0.
func parseCount(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	v := ParseDecimal(s)
	if !v.Valid || v.Float64 != math.Trunc(v.Float64) || math.Abs(v.Float64) > math.MaxInt32 {
		return 0
	}
	return int(v.Float64)
}

func formatCount(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatDecimal(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
