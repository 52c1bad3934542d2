package analytics

import (
	"sort"

	"github.com/lox/hoteldash/internal/models"
)

// FallbackPriceRange is offered when no record carries a price.
var FallbackPriceRange = Range{Min: 0, Max: 1000}

// Options are the value domains the filter controls offer.
type Options struct {
	Hotels    []string   `json:"hotels"`
	Nights    []int      `json:"nights"`
	Persons   []int      `json:"persons"`
	Price     Range      `json:"price"`
	HasPrices bool       `json:"has_prices"`
	Dates     *DateRange `json:"dates,omitempty"`
}

// BuildOptions derives filter domains from the base table: distinct non-empty
// hotel names, distinct nights and persons values, and the price and date bounds.
func BuildOptions(records []models.Record) Options {
	hotels := make(map[string]struct{})
	nights := make(map[int]struct{})
	persons := make(map[int]struct{})
	opts := Options{Price: FallbackPriceRange}

	for _, rec := range records {
		if rec.HotelName != "" {
			hotels[rec.HotelName] = struct{}{}
		}
		if rec.Nights > 0 {
			nights[rec.Nights] = struct{}{}
		}
		if rec.Persons > 0 {
			persons[rec.Persons] = struct{}{}
		}

		if rec.Price.Valid {
			p := rec.Price.Float64
			if !opts.HasPrices {
				opts.Price = Range{Min: p, Max: p}
				opts.HasPrices = true
			} else {
				opts.Price.Min = min(opts.Price.Min, p)
				opts.Price.Max = max(opts.Price.Max, p)
			}
		}

		if rec.PriceDate.Valid {
			d := rec.PriceDate.Time
			if opts.Dates == nil {
				opts.Dates = &DateRange{From: d, To: d}
			} else {
				if d.Before(opts.Dates.From) {
					opts.Dates.From = d
				}
				if d.After(opts.Dates.To) {
					opts.Dates.To = d
				}
			}
		}
	}

	opts.Hotels = sortedKeys(hotels, func(a, b string) bool { return a < b })
	opts.Nights = sortedKeys(nights, func(a, b int) bool { return a < b })
	opts.Persons = sortedKeys(persons, func(a, b int) bool { return a < b })
	return opts
}

// DefaultSelection is the selection shown before the user touches any control:
// every hotel, the smallest nights and persons values, and the full price and
// date domains (left inactive so rows with a null price or date stay visible).
func DefaultSelection(opts Options) Selection {
	var sel Selection
	if len(opts.Nights) > 0 {
		n := opts.Nights[0]
		sel.Nights = &n
	}
	if len(opts.Persons) > 0 {
		p := opts.Persons[0]
		sel.Persons = &p
	}
	return sel
}

// Narrow drops range predicates that cover their entire domain, so a
// selection equal to the defaults behaves exactly like no selection.
func (opts Options) Narrow(sel Selection) Selection {
	if sel.Price != nil &&
		sel.Price.Min <= opts.Price.Min && sel.Price.Max >= opts.Price.Max {
		sel.Price = nil
	}
	if sel.Dates != nil && opts.Dates != nil &&
		!sel.Dates.From.After(opts.Dates.From) && !sel.Dates.To.Before(opts.Dates.To) {
		sel.Dates = nil
	}
	return sel
}

func sortedKeys[K comparable](m map[K]struct{}, less func(a, b K) bool) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}
