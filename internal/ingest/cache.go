package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/lox/hoteldash/internal/metrics"
	"github.com/lox/hoteldash/internal/models"
)

const maxCachedTables = 8

// incompleteRetryInterval is how long a table missing unreadable files is
// served before the file set is read again.
const incompleteRetryInterval = 30 * time.Second

// SnapshotStore persists base tables and load audits across process restarts.
type SnapshotStore interface {
	// LoadSnapshot returns nil, nil when no snapshot exists for key.
	LoadSnapshot(key string) (*models.BaseTable, error)
	SaveSnapshot(table *models.BaseTable) error
	RecordLoadReport(report *LoadReport) error
}

// FileSetKey identifies a file set by its sorted paths, sizes and
// modification times. Any file change yields a different key.
func FileSetKey(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, p := range sorted {
		info, err := os.Stat(p)
		if err != nil {
			fmt.Fprintf(h, "%s\x00missing\n", p)
			continue
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", p, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache holds base tables keyed by file set so repeated filter interactions
// reuse one immutable table. The loader is pure, so a miss only costs time.
type Cache struct {
	mu         sync.Mutex
	loader     *Loader
	store      SnapshotStore
	tables     map[string]*models.BaseTable
	retryAt    map[string]time.Time // keys of incomplete tables
	lastReport *LoadReport
	now        func() time.Time
}

// NewCache creates a cache. store may be nil to disable persistence.
func NewCache(loader *Loader, store SnapshotStore) *Cache {
	return &Cache{
		loader:  loader,
		store:   store,
		tables:  make(map[string]*models.BaseTable),
		retryAt: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Get returns the base table for paths, loading it on a miss. ErrNoData is
// returned for an empty table. A table missing files that could not be read
// is never persisted and is reloaded once incompleteRetryInterval has passed.
func (c *Cache) Get(ctx context.Context, paths []string) (*models.BaseTable, error) {
	key := FileSetKey(paths)

	c.mu.Lock()
	defer c.mu.Unlock()

	if at, ok := c.retryAt[key]; ok && !c.now().Before(at) {
		delete(c.tables, key)
		delete(c.retryAt, key)
	}
	if t, ok := c.tables[key]; ok {
		metrics.BaseTableCache.WithLabelValues("hit").Inc()
		return t, noDataErr(t)
	}

	if c.store != nil {
		t, err := c.store.LoadSnapshot(key)
		if err != nil {
			log.Printf("ingest: load snapshot %s: %v", shortKey(key), err)
		} else if t != nil {
			metrics.BaseTableCache.WithLabelValues("store").Inc()
			c.put(t)
			return t, noDataErr(t)
		}
	}

	metrics.BaseTableCache.WithLabelValues("miss").Inc()
	t, report, err := c.loader.Load(ctx, paths)
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, err
	}
	if ctx.Err() != nil {
		// A cancelled load may have skipped files; do not remember it.
		return nil, ctx.Err()
	}
	t.Key = key
	c.lastReport = report
	c.put(t)
	complete := report.Complete()
	if !complete {
		c.retryAt[key] = c.now().Add(incompleteRetryInterval)
		log.Printf("ingest: table %s incomplete, retrying in %s", shortKey(key), incompleteRetryInterval)
	}

	if c.store != nil {
		if err := c.store.RecordLoadReport(report); err != nil {
			log.Printf("ingest: record load report: %v", err)
		}
		if complete && !t.Empty() {
			if err := c.store.SaveSnapshot(t); err != nil {
				log.Printf("ingest: save snapshot %s: %v", shortKey(key), err)
			}
		}
	}
	return t, noDataErr(t)
}

// LastReport returns the report of the most recent load performed by this cache.
func (c *Cache) LastReport() *LoadReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReport
}

func (c *Cache) put(t *models.BaseTable) {
	if len(c.tables) >= maxCachedTables {
		var oldest string
		for k, v := range c.tables {
			if oldest == "" || v.LoadedAt.Before(c.tables[oldest].LoadedAt) {
				oldest = k
			}
		}
		delete(c.tables, oldest)
		delete(c.retryAt, oldest)
	}
	c.tables[t.Key] = t
}

func noDataErr(t *models.BaseTable) error {
	if t.Empty() {
		return ErrNoData
	}
	return nil
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
