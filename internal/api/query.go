package api

import (
	"net/http"

	"github.com/lox/hoteldash/internal/analytics"
)

func paramsFromRequest(r *http.Request) analytics.Params {
	q := r.URL.Query()
	var hotels []string
	for _, h := range q["hotel"] {
		if h != "" {
			hotels = append(hotels, h)
		}
	}
	return analytics.Params{
		Hotels:   hotels,
		Nights:   q.Get("nights"),
		Persons:  q.Get("persons"),
		PriceMin: q.Get("price_min"),
		PriceMax: q.Get("price_max"),
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
	}
}

func (s *Server) parseSelection(r *http.Request, opts analytics.Options) (analytics.Selection, error) {
	return paramsFromRequest(r).Resolve(opts)
}
