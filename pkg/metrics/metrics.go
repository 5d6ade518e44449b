// Package metrics defines the Prometheus metric collectors used by the indexer
// and the searcher and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the index and query paths.
type Metrics struct {
	DocsIndexedTotal     prometheus.Counter
	DocsSkippedTotal     prometheus.Counter
	BlocksFlushedTotal   prometheus.Counter
	SegmentsWrittenTotal prometheus.Counter
	PostingsMergedTotal  prometheus.Counter
	MergeDuration        prometheus.Histogram
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	TermLookupsTotal     *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them on reg. Passing
// prometheus.NewRegistry() keeps instances independent, which tests rely on.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spimi_docs_indexed_total",
				Help: "Total documents added to the index.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spimi_docs_skipped_total",
				Help: "Documents skipped because they normalised to no terms.",
			},
		),
		BlocksFlushedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spimi_blocks_flushed_total",
				Help: "Total block files written by the block builder.",
			},
		),
		SegmentsWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spimi_segments_written_total",
				Help: "Total segment files written by the merger.",
			},
		),
		PostingsMergedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spimi_postings_merged_total",
				Help: "Total postings written into segments.",
			},
		),
		MergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spimi_merge_duration_seconds",
				Help:    "Duration of the block merge phase.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spimi_search_queries_total",
				Help: "Total search queries by result type (hit, empty, invalid).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spimi_search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"model"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spimi_search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		TermLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spimi_term_lookups_total",
				Help: "Posting list lookups by outcome (found, missing, corrupt).",
			},
			[]string{"outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spimi_cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spimi_cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spimi_http_requests_total",
				Help: "HTTP requests served by the search API, by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spimi_http_request_duration_seconds",
				Help:    "HTTP request latency of the search API.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "spimi_http_requests_in_flight",
				Help: "HTTP requests currently being served.",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.DocsIndexedTotal,
		m.DocsSkippedTotal,
		m.BlocksFlushedTotal,
		m.SegmentsWrittenTotal,
		m.PostingsMergedTotal,
		m.MergeDuration,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.TermLookupsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the registry the
// metrics were created on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
