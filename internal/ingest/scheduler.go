package ingest

import (
	"context"
	"errors"
	"log"
	"time"
)

// Scheduler keeps the base table for a data directory warm while the
// dashboard runs, optionally mirroring new files from FTP first.
type Scheduler struct {
	cache          *Cache
	dataDir        string
	ftp            *FTPSource
	reloadInterval time.Duration
	fetchInterval  time.Duration
}

func NewScheduler(cache *Cache, dataDir string) *Scheduler {
	return &Scheduler{
		cache:          cache,
		dataDir:        dataDir,
		reloadInterval: time.Minute,
		fetchInterval:  15 * time.Minute,
	}
}

// SetFTPSource configures the scheduler to mirror files from src.
func (s *Scheduler) SetFTPSource(src *FTPSource, interval time.Duration) {
	s.ftp = src
	if interval > 0 {
		s.fetchInterval = interval
	}
}

// SetReloadInterval changes how often the data directory is re-scanned.
func (s *Scheduler) SetReloadInterval(d time.Duration) {
	if d > 0 {
		s.reloadInterval = d
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.fetch(ctx)
	s.reload(ctx)

	reloadTicker := time.NewTicker(s.reloadInterval)
	defer reloadTicker.Stop()

	// A nil channel never fires, so fetching stays off without an FTP source.
	var fetchC <-chan time.Time
	if s.ftp != nil {
		fetchTicker := time.NewTicker(s.fetchInterval)
		defer fetchTicker.Stop()
		fetchC = fetchTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-fetchC:
			if s.fetch(ctx) > 0 {
				s.reload(ctx)
			}
		case <-reloadTicker.C:
			s.reload(ctx)
		}
	}
}

// RefreshOnce mirrors (when configured) and reloads once.
func (s *Scheduler) RefreshOnce(ctx context.Context) error {
	s.fetch(ctx)
	return s.reload(ctx)
}

func (s *Scheduler) fetch(ctx context.Context) int {
	if s.ftp == nil {
		return 0
	}
	paths, err := s.ftp.Mirror(ctx, s.dataDir)
	if err != nil {
		log.Printf("scheduler: ftp mirror: %v", err)
	}
	if len(paths) > 0 {
		log.Printf("scheduler: mirrored %d files", len(paths))
	}
	return len(paths)
}

// reload rebuilds the base table if the file set changed. The cache makes
// an unchanged directory a cheap lookup.
func (s *Scheduler) reload(ctx context.Context) error {
	paths, err := Discover(s.dataDir)
	if err != nil {
		log.Printf("scheduler: discover: %v", err)
		return err
	}
	t, err := s.cache.Get(ctx, paths)
	if errors.Is(err, ErrNoData) {
		log.Printf("scheduler: %s: no data", s.dataDir)
		return err
	}
	if err != nil {
		log.Printf("scheduler: reload: %v", err)
		return err
	}
	log.Printf("scheduler: base table %s: %d records", shortKey(t.Key), t.Len())
	return nil
}
