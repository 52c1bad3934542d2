package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoteldash_files_loaded_total",
			Help: "Snapshot files processed by the loader",
		},
		[]string{"scrape_time", "status"},
	)

	RecordsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoteldash_records_loaded_total",
			Help: "Snapshot records ingested",
		},
		[]string{"scrape_time"},
	)

	RecordFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoteldash_record_quality_flags_total",
			Help: "Quality flags raised on ingested records",
		},
		[]string{"flag"},
	)

	LoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hoteldash_load_duration_seconds",
			Help:    "Time to build a base table from a file set",
			Buckets: prometheus.DefBuckets,
		},
	)

	BaseTableCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoteldash_base_table_cache_total",
			Help: "Base table cache lookups",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoteldash_http_requests_total",
			Help: "Dashboard HTTP requests",
		},
		[]string{"handler", "code"},
	)

	NarrativeCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoteldash_narrative_calls_total",
			Help: "OpenAI narrative generation calls",
		},
		[]string{"status"},
	)
)
