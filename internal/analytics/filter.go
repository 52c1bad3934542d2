package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lox/hoteldash/internal/models"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// DateRange is an inclusive interval of calendar dates.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Selection selects a working subset. A nil or empty field is an inactive
// predicate; active predicates are combined with AND.
type Selection struct {
	Hotels  []string   `json:"hotels,omitempty"`
	Nights  *int       `json:"nights,omitempty"`
	Persons *int       `json:"persons,omitempty"`
	Price   *Range     `json:"price,omitempty"`
	Dates   *DateRange `json:"dates,omitempty"`
}

// Active reports whether any predicate restricts the table.
func (s Selection) Active() bool {
	return len(s.Hotels) > 0 || s.Nights != nil || s.Persons != nil || s.Price != nil || s.Dates != nil
}

// String renders the active predicates in a stable form, suitable for
// captions and cache keys. Hotels are sorted and quoted, so equal hotel sets
// render identically. An inactive selection renders as "all".
func (s Selection) String() string {
	var parts []string
	if len(s.Hotels) > 0 {
		hotels := append([]string(nil), s.Hotels...)
		sort.Strings(hotels)
		quoted := make([]string, 0, len(hotels))
		for i, h := range hotels {
			if i > 0 && h == hotels[i-1] {
				continue
			}
			quoted = append(quoted, strconv.Quote(h))
		}
		parts = append(parts, "hotels="+strings.Join(quoted, ","))
	}
	if s.Nights != nil {
		parts = append(parts, fmt.Sprintf("nights=%d", *s.Nights))
	}
	if s.Persons != nil {
		parts = append(parts, fmt.Sprintf("persons=%d", *s.Persons))
	}
	if s.Price != nil {
		parts = append(parts, fmt.Sprintf("price=%g-%g", s.Price.Min, s.Price.Max))
	}
	if s.Dates != nil {
		parts = append(parts, fmt.Sprintf("dates=%s..%s", s.Dates.From.Format("2006-01-02"), s.Dates.To.Format("2006-01-02")))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

// Apply returns the records satisfying every active predicate of sel, in
// their original order. Rows with a null price or date never satisfy an
// active price or date predicate. The input slice is not modified.
func Apply(records []models.Record, sel Selection) []models.Record {
	var hotels map[string]struct{}
	if len(sel.Hotels) > 0 {
		hotels = make(map[string]struct{}, len(sel.Hotels))
		for _, h := range sel.Hotels {
			hotels[h] = struct{}{}
		}
	}

	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if hotels != nil {
			if _, ok := hotels[rec.HotelName]; !ok {
				continue
			}
		}
		if sel.Nights != nil && rec.Nights != *sel.Nights {
			continue
		}
		if sel.Persons != nil && rec.Persons != *sel.Persons {
			continue
		}
		if sel.Price != nil && (!rec.Price.Valid || !sel.Price.Contains(rec.Price.Float64)) {
			continue
		}
		if sel.Dates != nil && (!rec.PriceDate.Valid || !sel.Dates.Contains(rec.PriceDate.Time)) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
