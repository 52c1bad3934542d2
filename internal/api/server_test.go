package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/api"
	"github.com/lox/hoteldash/internal/ingest"
	"github.com/lox/hoteldash/internal/store"

	_ "modernc.org/sqlite"
)

const morningCSV = `name,nights,persons,price,review_score,distance,price_date
Hotel Arctic,1,2,100,8.5,1.2,15/06/2024
Hotel Arctic,1,2,,8.5,1.2,16/06/2024
Hotel Boreal,1,2,200,,0.4,15/06/2024
`

const eveningCSV = `name,nights,persons,price,review_score,distance,price_date
Hotel Arctic,1,2,110,8.5,1.2,15/06/2024
Hotel Boreal,1,2,n/a,7.9,0.4,not a date
`

func setupDataDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func setupServer(t *testing.T, files map[string]string) *api.Server {
	t.Helper()
	dir := setupDataDir(t, files)
	return api.NewServer(ingest.NewCache(ingest.NewLoader(), nil), dir, "8080")
}

func defaultFiles() map[string]string {
	return map[string]string{
		"oulu_Mor.csv": morningCSV,
		"oulu_Eve.csv": eveningCSV,
	}
}

func get(t *testing.T, srv *api.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Records != 5 || health.Files != 2 {
		t.Errorf("health = %+v", health)
	}
}

func TestHealthEndpoint_WithStore(t *testing.T) {
	t.Parallel()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatal(err)
	}

	files := defaultFiles()
	files["broken_Eve.csv"] = "name,price\nHotel Arctic,100\n"
	dir := setupDataDir(t, files)
	srv := api.NewServer(ingest.NewCache(ingest.NewLoader(), st), dir, "8080")
	srv.SetLoadHistory(st)

	w := get(t, srv, "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "degraded" {
		t.Errorf("status = %q, want degraded", health.Status)
	}
	if len(health.Failed) != 1 || !strings.HasSuffix(health.Failed[0].Path, "broken_Eve.csv") {
		t.Errorf("failed = %+v", health.Failed)
	}
	if len(health.RecentFail) != 1 {
		t.Errorf("recent failures = %+v", health.RecentFail)
	}
	if len(health.Daily) != 1 || health.Daily[0].FilesFailed != 1 || health.Daily[0].FilesOK != 2 {
		t.Errorf("daily = %+v", health.Daily)
	}
}

func TestHealthEndpoint_NoData(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, nil)

	w := get(t, srv, "/health")
	if w.Code != 503 {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"no_data"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestIndexPage_NoData(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, map[string]string{"empty_Mor.csv": ""})

	w := get(t, srv, "/")
	if w.Code != 503 {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "No data found") {
		t.Error("expected no data message")
	}
	if !strings.Contains(body, "empty_Mor.csv") {
		t.Error("expected failed file to be listed")
	}
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"<h1>Hotel Pricing Dashboard</h1>", "Hotel Arctic", "136.67", "100.00%", `id="priceChart"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in page", want)
		}
	}
	if strings.Contains(body, "No data available for the selected filters") {
		t.Error("unexpected empty selection warning")
	}
	if strings.Contains(body, `id="narrate"`) {
		t.Error("narrative button should be hidden without a narrator")
	}
}

func TestIndexPage_EmptySelection(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/?hotel=Nowhere")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "No data available for the selected filters") {
		t.Error("expected empty selection warning")
	}
	if strings.Contains(body, `id="priceChart"`) {
		t.Error("expected no charts for an empty selection")
	}
}

func TestIndexPage_NotFound(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	if w := get(t, srv, "/nope"); w.Code != 404 {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAPIOptions(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/api/options")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got struct {
		analytics.Options
		Defaults analytics.Selection `json:"defaults"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Hotels) != 2 || got.Hotels[0] != "Hotel Arctic" {
		t.Errorf("hotels = %v", got.Hotels)
	}
	if got.Price != (analytics.Range{Min: 100, Max: 200}) {
		t.Errorf("price = %+v", got.Price)
	}
	if got.Defaults.Nights == nil || *got.Defaults.Nights != 1 {
		t.Errorf("defaults = %+v", got.Defaults)
	}
}

func TestAPIDashboard(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/api/dashboard")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var d analytics.Dashboard
	if err := json.NewDecoder(w.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if d.Empty {
		t.Fatal("expected non-empty dashboard")
	}
	if d.KPIs.ADR != 136.67 || d.KPIs.OccupancyRate != 100 || d.KPIs.RevPAR != 136.67 {
		t.Errorf("kpis = %+v", d.KPIs)
	}
	// (15/06, Morning), (15/06, Evening), (16/06, Morning)
	if len(d.Dates) != 3 {
		t.Errorf("len(dates) = %d, want 3", len(d.Dates))
	}
	if d.Summary.Records != 5 {
		t.Errorf("records = %d, want 5", d.Summary.Records)
	}
}

func TestAPIDashboard_Filtered(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/api/dashboard?hotel=Hotel+Boreal&price_min=150")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var d analytics.Dashboard
	if err := json.NewDecoder(w.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if d.Summary.Records != 1 || d.KPIs.ADR != 200 {
		t.Errorf("summary = %+v, kpis = %+v", d.Summary, d.KPIs)
	}
}

func TestAPIDashboard_BadQuery(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	for _, q := range []string{"nights=0", "persons=abc", "price_min=-1", "date_from=2024-13-01", "price_min=300&price_max=100"} {
		w := get(t, srv, "/api/dashboard?"+q)
		if w.Code != 400 {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestAPIDashboard_NoData(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, nil)

	if w := get(t, srv, "/api/dashboard"); w.Code != 503 {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestAPIRows_SortedByDateNullsLast(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/api/rows")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rows []struct {
		Name      string   `json:"name"`
		PriceDate string   `json:"price_date"`
		Price     *float64 `json:"price"`
	}
	if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("len(rows) = %d, want 5", len(rows))
	}
	if rows[0].PriceDate != "2024-06-15" {
		t.Errorf("first row date = %q", rows[0].PriceDate)
	}
	last := rows[len(rows)-1]
	if last.PriceDate != "not a date" || last.Price != nil {
		t.Errorf("last row = %+v, want unparsable date with null price", last)
	}
}

func TestExportCSV(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/export.csv?hotel=Hotel+Arctic")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if !strings.HasPrefix(lines[0], "name,nights,persons,price") {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 4 {
		t.Errorf("len(lines) = %d, want header plus 3 rows", len(lines))
	}
}

func TestExportXLSX(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/export.xlsx")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	// xlsx is a zip archive.
	if !strings.HasPrefix(w.Body.String(), "PK") {
		t.Error("expected zip payload")
	}
}

func TestKPICard(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	w := get(t, srv, "/kpi-card.png")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "\x89PNG") {
		t.Error("expected PNG payload")
	}
}

type stubNarrator struct {
	got analytics.Dashboard
}

func (s *stubNarrator) Describe(ctx context.Context, d analytics.Dashboard) (string, error) {
	s.got = d
	return "Prices are steady.", nil
}

func TestNarrative(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())

	if w := get(t, srv, "/api/narrative"); w.Code != 501 {
		t.Errorf("expected 501 without narrator, got %d", w.Code)
	}

	stub := &stubNarrator{}
	srv.SetNarrator(stub)
	w := get(t, srv, "/api/narrative?nights=1")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Prices are steady.") {
		t.Errorf("body = %s", w.Body.String())
	}
	if stub.got.Selection.Nights == nil || *stub.got.Selection.Nights != 1 {
		t.Errorf("narrator selection = %+v", stub.got.Selection)
	}

	if body := get(t, srv, "/").Body.String(); !strings.Contains(body, `id="narrate"`) {
		t.Error("expected narrative button once a narrator is set")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, defaultFiles())
	get(t, srv, "/health")

	w := get(t, srv, "/metrics")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "hoteldash_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}
