package api

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/imagegen"
	"github.com/lox/hoteldash/internal/ingest"
	"github.com/lox/hoteldash/internal/metrics"
	"github.com/lox/hoteldash/internal/models"
	"github.com/lox/hoteldash/internal/store"
)

// Narrator writes commentary for a dashboard.
type Narrator interface {
	Describe(ctx context.Context, d analytics.Dashboard) (string, error)
}

// LoadHistory exposes the load audit log for the health endpoint.
type LoadHistory interface {
	GetRecentLoadFailures(limit int) ([]store.LoadRun, error)
	GetLoadHealth(days int) ([]store.LoadHealthSummary, error)
}

type Server struct {
	cache     *ingest.Cache
	dataDir   string
	port      string
	tmpl      *template.Template
	cardCache *imagegen.CardCache
	narrator  Narrator
	history   LoadHistory
}

func NewServer(cache *ingest.Cache, dataDir, port string) *Server {
	return &Server{
		cache:     cache,
		dataDir:   dataDir,
		port:      port,
		tmpl:      newTemplates(),
		cardCache: imagegen.NewCardCache(5 * time.Minute),
	}
}

// SetNarrator enables the narrative endpoint.
func (s *Server) SetNarrator(n Narrator) {
	s.narrator = n
}

// SetLoadHistory enables load failure reporting on the health endpoint.
func (s *Server) SetLoadHistory(h LoadHistory) {
	s.history = h
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.instrument("index", s.handleIndex))
	mux.HandleFunc("/health", s.instrument("health", s.handleHealth))
	mux.HandleFunc("/api/options", s.instrument("options", s.handleAPIOptions))
	mux.HandleFunc("/api/dashboard", s.instrument("dashboard", s.handleAPIDashboard))
	mux.HandleFunc("/api/rows", s.instrument("rows", s.handleAPIRows))
	mux.HandleFunc("/api/narrative", s.instrument("narrative", s.handleAPINarrative))
	mux.HandleFunc("/export.csv", s.instrument("export_csv", s.handleExport(ingest.FormatCSV)))
	mux.HandleFunc("/export.xlsx", s.instrument("export_xlsx", s.handleExport(ingest.FormatXLSX)))
	mux.HandleFunc("/kpi-card.png", s.instrument("kpi_card", s.handleKPICard))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s (data dir %s)", s.port, s.dataDir)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		metrics.HTTPRequests.WithLabelValues(name, strconv.Itoa(rec.code)).Inc()
	}
}

// baseTable returns the base table for the current contents of the data
// directory. An empty table is returned alongside ingest.ErrNoData.
func (s *Server) baseTable(ctx context.Context) (*models.BaseTable, error) {
	paths, err := ingest.Discover(s.dataDir)
	if err != nil {
		return nil, err
	}
	return s.cache.Get(ctx, paths)
}

// selection resolves the base table, its option domains and the filter
// requested by r. Errors have already been written to w when ok is false.
func (s *Server) selection(w http.ResponseWriter, r *http.Request) (table *models.BaseTable, opts analytics.Options, sel analytics.Selection, ok bool) {
	table, err := s.baseTable(r.Context())
	if err != nil {
		writeError(w, err)
		return nil, opts, sel, false
	}
	opts = analytics.BuildOptions(table.Records)

	sel, err = s.parseSelection(r, opts)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return nil, opts, sel, false
	}
	return table, opts, sel, true
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ingest.ErrNoData) {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	log.Printf("api: %v", err)
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}
