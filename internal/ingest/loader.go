package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/lox/hoteldash/internal/metrics"
	"github.com/lox/hoteldash/internal/models"
)

// ErrNoData is returned when a file set produces zero records. Callers must
// stop rather than filter or compute metrics.
var ErrNoData = errors.New("no data available")

const maxReadRetries = 3

// ScrapeTimeFromName infers the scrape time from a file's base name.
// "Mor" is checked before "Eve".
func ScrapeTimeFromName(path string) models.ScrapeTime {
	base := filepath.Base(path)
	switch {
	case strings.Contains(base, "Mor"):
		return models.ScrapeMorning
	case strings.Contains(base, "Eve"):
		return models.ScrapeEvening
	}
	return models.ScrapeUnknown
}

// Discover lists the snapshot files (.csv, .xlsx) directly inside dir, sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv", ".xlsx":
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Path       string
	ScrapeTime models.ScrapeTime
	Rows       int
	Flagged    int
	Flags      map[string]int
	Err        error
}

func (r FileResult) OK() bool { return r.Err == nil }

// ReadFailed reports whether the file was excluded because it could not be
// read, as opposed to read but not parsed. A read failure may clear without
// the file changing.
func (r FileResult) ReadFailed() bool {
	var re *readError
	return errors.As(r.Err, &re)
}

// LoadReport describes one Load call.
type LoadReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      []FileResult
}

// Failed returns the files that were excluded from the base table.
func (r *LoadReport) Failed() []FileResult {
	var failed []FileResult
	for _, f := range r.Files {
		if !f.OK() {
			failed = append(failed, f)
		}
	}
	return failed
}

// Complete reports whether every file was read. Parse failures do not count,
// they repeat until the file changes.
func (r *LoadReport) Complete() bool {
	for _, f := range r.Files {
		if f.ReadFailed() {
			return false
		}
	}
	return true
}

// Rows returns the total number of records ingested.
func (r *LoadReport) Rows() int {
	n := 0
	for _, f := range r.Files {
		n += f.Rows
	}
	return n
}

type Loader struct {
	readFile   func(string) ([]byte, error)
	newBackOff func() backoff.BackOff
}

func NewLoader() *Loader {
	return &Loader{
		readFile: readRegularFile,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxElapsedTime = 5 * time.Second
			return bo
		},
	}
}

// Load parses every file into one base table. A file that fails is reported
// and skipped; the remaining files are still ingested. ErrNoData is returned
// together with an empty table when nothing was ingested.
func (l *Loader) Load(ctx context.Context, paths []string) (*models.BaseTable, *LoadReport, error) {
	start := time.Now()
	report := &LoadReport{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
		Files:     make([]FileResult, 0, len(paths)),
	}
	table := &models.BaseTable{
		Key:   FileSetKey(paths),
		Files: append([]string(nil), paths...),
	}

	for _, path := range paths {
		res := FileResult{Path: path, ScrapeTime: ScrapeTimeFromName(path)}

		records, err := l.loadFile(ctx, path)
		if err != nil {
			res.Err = err
			log.Printf("ingest: skip %s: %v", path, err)
			metrics.FilesLoaded.WithLabelValues(string(res.ScrapeTime), "error").Inc()
			report.Files = append(report.Files, res)
			continue
		}

		for _, rec := range records {
			if flags := ValidateRecord(rec); len(flags) > 0 {
				if res.Flags == nil {
					res.Flags = make(map[string]int)
				}
				res.Flagged++
				for _, f := range flags {
					res.Flags[f]++
					metrics.RecordFlags.WithLabelValues(f).Inc()
				}
			}
		}
		res.Rows = len(records)
		table.Records = append(table.Records, records...)

		metrics.FilesLoaded.WithLabelValues(string(res.ScrapeTime), "ok").Inc()
		metrics.RecordsLoaded.WithLabelValues(string(res.ScrapeTime)).Add(float64(res.Rows))
		report.Files = append(report.Files, res)
	}

	report.FinishedAt = time.Now().UTC()
	table.LoadedAt = report.FinishedAt
	metrics.LoadDuration.Observe(time.Since(start).Seconds())

	log.Printf("ingest: run %s: %d records from %d/%d files", report.RunID, report.Rows(),
		len(report.Files)-len(report.Failed()), len(report.Files))

	if table.Empty() {
		return table, report, ErrNoData
	}
	return table, report, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) ([]models.Record, error) {
	var data []byte
	operation := func() error {
		b, err := l.readFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, errNotRegular) {
				return backoff.Permanent(err)
			}
			return err
		}
		data = b
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(l.newBackOff(), maxReadRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, &readError{err: err}
	}

	raws, err := parseFile(path, data)
	if err != nil {
		return nil, err
	}

	records := make([]models.Record, len(raws))
	for i, raw := range raws {
		records[i] = Normalize(raw)
	}
	return records, nil
}

var errNotRegular = errors.New("not a regular file")

type readError struct{ err error }

func (e *readError) Error() string { return "read: " + e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

func readRegularFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, errNotRegular
	}
	return os.ReadFile(path)
}
