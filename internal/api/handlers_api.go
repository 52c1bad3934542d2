package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/ingest"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg})
}

func (s *Server) handleAPIOptions(w http.ResponseWriter, r *http.Request) {
	table, err := s.baseTable(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	opts := analytics.BuildOptions(table.Records)
	writeJSON(w, http.StatusOK, struct {
		analytics.Options
		Defaults analytics.Selection `json:"defaults"`
	}{opts, analytics.DefaultSelection(opts)})
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	table, _, sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	d, _ := analytics.Build(table, sel)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAPIRows(w http.ResponseWriter, r *http.Request) {
	table, _, sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	_, rows := analytics.Build(table, sel)
	writeJSON(w, http.StatusOK, newRowViews(rows))
}

func (s *Server) handleAPINarrative(w http.ResponseWriter, r *http.Request) {
	if s.narrator == nil {
		writeJSONError(w, http.StatusNotImplemented, "narrative generation is not configured")
		return
	}
	table, _, sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	d, _ := analytics.Build(table, sel)
	text, err := s.narrator.Describe(r.Context(), d)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"narrative": text})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok"}

	table, err := s.baseTable(r.Context())
	switch {
	case errors.Is(err, ingest.ErrNoData):
		health.Status = "no_data"
	case err != nil:
		health.Status = "error"
		health.Errors = append(health.Errors, err.Error())
	default:
		health.Records = table.Len()
		health.Files = len(table.Files)
		loadedAt := table.LoadedAt
		health.LoadedAt = &loadedAt
	}

	if report := s.cache.LastReport(); report != nil {
		health.LastRunID = report.RunID
		for _, f := range report.Failed() {
			health.Failed = append(health.Failed, FileFailure{Path: f.Path, Error: f.Err.Error()})
		}
		if len(health.Failed) > 0 && health.Status == "ok" {
			health.Status = "degraded"
		}
	}

	if s.history != nil {
		runs, err := s.history.GetRecentLoadFailures(10)
		if err != nil {
			health.Errors = append(health.Errors, "load history: "+err.Error())
		}
		for _, run := range runs {
			at := run.StartedAt
			health.RecentFail = append(health.RecentFail, FileFailure{Path: run.Path, Error: run.ErrorMessage.String, At: &at})
		}
		daily, err := s.history.GetLoadHealth(7)
		if err != nil {
			health.Errors = append(health.Errors, "load health: "+err.Error())
		}
		health.Daily = daily
	}

	status := http.StatusOK
	if health.Status == "no_data" || health.Status == "error" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
