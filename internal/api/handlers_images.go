package api

import (
	"log"
	"net/http"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/imagegen"
)

// handleKPICard serves a PNG summary of the KPIs for the requested filter.
func (s *Server) handleKPICard(w http.ResponseWriter, r *http.Request) {
	table, _, sel, ok := s.selection(w, r)
	if !ok {
		return
	}

	key := table.Key + "|" + sel.String()
	if data, ok := s.cardCache.Get(key); ok {
		servePNG(w, data)
		return
	}

	d, _ := analytics.Build(table, sel)
	data, err := imagegen.GenerateKPICard(imagegen.CardData{
		KPIs:    d.KPIs,
		Records: d.Summary.Records,
		Hotels:  d.Summary.UniqueHotels,
		Caption: sel.String(),
	})
	if err != nil {
		log.Printf("api: kpi card: %v", err)
		http.Error(w, "failed to render card", http.StatusInternalServerError)
		return
	}
	s.cardCache.Set(key, data)
	servePNG(w, data)
}

func servePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}
