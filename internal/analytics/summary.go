package analytics

import (
	"sort"
	"time"

	"github.com/lox/hoteldash/internal/models"
)

// Summary describes a filtered subset for the data summary panel.
type Summary struct {
	SelectedHotels []string   `json:"selected_hotels"`
	AllHotels      bool       `json:"all_hotels"`
	Records        int        `json:"records"`
	UniqueHotels   int        `json:"unique_hotels"`
	DateFrom       *time.Time `json:"date_from,omitempty"`
	DateTo         *time.Time `json:"date_to,omitempty"`
	PriceMin       *float64   `json:"price_min,omitempty"`
	PriceMax       *float64   `json:"price_max,omitempty"`
}

func Summarize(records []models.Record, sel Selection) Summary {
	s := Summary{
		SelectedHotels: sel.Hotels,
		AllHotels:      len(sel.Hotels) == 0,
		Records:        len(records),
	}

	hotels := make(map[string]struct{})
	for _, r := range records {
		if r.HotelName != "" {
			hotels[r.HotelName] = struct{}{}
		}
		if r.PriceDate.Valid {
			d := r.PriceDate.Time
			if s.DateFrom == nil || d.Before(*s.DateFrom) {
				s.DateFrom = &d
			}
			if s.DateTo == nil || d.After(*s.DateTo) {
				s.DateTo = &d
			}
		}
		if r.Price.Valid {
			p := r.Price.Float64
			if s.PriceMin == nil || p < *s.PriceMin {
				s.PriceMin = &p
			}
			if s.PriceMax == nil || p > *s.PriceMax {
				s.PriceMax = &p
			}
		}
	}
	s.UniqueHotels = len(hotels)
	return s
}

// SortByDate returns a copy of records ordered by price date. Rows without a
// date go last; ties keep their input order.
func SortByDate(records []models.Record) []models.Record {
	out := append([]models.Record(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PriceDate, out[j].PriceDate
		switch {
		case !a.Valid:
			return false
		case !b.Valid:
			return true
		}
		return a.Time.Before(b.Time)
	})
	return out
}
