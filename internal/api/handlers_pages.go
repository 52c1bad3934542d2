package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/ingest"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	table, err := s.baseTable(r.Context())
	if errors.Is(err, ingest.ErrNoData) {
		s.renderNoData(w)
		return
	}
	if err != nil {
		log.Printf("api: index: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	opts := analytics.BuildOptions(table.Records)
	sel, err := s.parseSelection(r, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d, rows := analytics.Build(table, sel)

	data := IndexData{
		Options:   opts,
		Selection: sel,
		Dashboard: d,
		Rows:      newRowViews(rows),
		Query:     r.URL.RawQuery,
		Form:      newFormValues(opts, sel),
		Narrative: s.narrator != nil,
	}
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("template error: %v", err)
	}
}

func (s *Server) renderNoData(w http.ResponseWriter) {
	page := NoDataPage{DataDir: s.dataDir}
	if report := s.cache.LastReport(); report != nil {
		for _, f := range report.Failed() {
			page.Failed = append(page.Failed, FileFailure{Path: f.Path, Error: f.Err.Error()})
		}
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := s.tmpl.ExecuteTemplate(w, "nodata.html", page); err != nil {
		log.Printf("template error: %v", err)
	}
}
