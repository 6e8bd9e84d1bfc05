// Package metrics exposes the ingest-level and cache-level prometheus
// instrumentation built on github.com/prometheus/client_golang: file-cache
// hit/miss counts, download outcomes, and per-package ingest duration.
// Query-level metrics for the relational store live alongside it in
// [github.com/symboldb/symboldb/store/postgres] instead, since those are a
// distinct concern (one query vs. one whole ingestion round) that happens to
// share the same library.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheResult labels a file-cache lookup outcome.
type CacheResult string

// Cache lookup outcomes.
const (
	CacheHit  CacheResult = "hit"
	CacheMiss CacheResult = "miss"
)

// cacheLookups counts file-cache Lookup calls by outcome.
var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "symboldb",
	Subsystem: "filecache",
	Name:      "lookup_total",
	Help:      "Count of content-addressed file cache lookups by outcome.",
}, []string{"result"})

// RecordCacheLookup records one [filecache.Cache.Lookup] call's outcome.
func RecordCacheLookup(result CacheResult) {
	cacheLookups.WithLabelValues(string(result)).Inc()
}

// DownloadOutcome labels how one download-url protocol invocation resolved.
type DownloadOutcome string

// Download outcomes, mirroring ingest's internal classification of
// downloadURL's result.
const (
	DownloadAlreadyKnown DownloadOutcome = "already_known"
	DownloadCacheReused  DownloadOutcome = "cache_reused"
	DownloadFetched      DownloadOutcome = "fetched"
	DownloadRetried      DownloadOutcome = "retried"
	DownloadFailed       DownloadOutcome = "failed"
)

var (
	downloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symboldb",
		Subsystem: "ingest",
		Name:      "download_total",
		Help:      "Count of download-url protocol invocations by outcome.",
	}, []string{"outcome"})

	downloadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symboldb",
		Subsystem: "ingest",
		Name:      "download_bytes_total",
		Help:      "Bytes fetched over the network by the download-url protocol.",
	}, []string{"outcome"})
)

// RecordDownload records one downloadURL invocation's outcome and, for a
// network fetch, the number of bytes actually read from the socket.
func RecordDownload(outcome DownloadOutcome, bytes int64) {
	downloadTotal.WithLabelValues(string(outcome)).Inc()
	if bytes > 0 {
		downloadBytes.WithLabelValues(string(outcome)).Add(float64(bytes))
	}
}

// ingestDuration times one per-package loadOne call, labeled by whether it
// persisted a freshly interned package or only recorded an existing one.
var ingestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "symboldb",
	Subsystem: "ingest",
	Name:      "package_duration_seconds",
	Help:      "Duration of one per-package parse/analyze/store transaction.",
	Buckets:   prometheus.DefBuckets,
}, []string{"fresh"})

// ObservePackageDuration records seconds spent in one loadOne call. fresh
// distinguishes a freshly interned package (the expensive path: parsing,
// analyzers, file-table writes) from an already-known one (a cheap intern
// lookup only).
func ObservePackageDuration(seconds float64, fresh bool) {
	label := "false"
	if fresh {
		label = "true"
	}
	ingestDuration.WithLabelValues(label).Observe(seconds)
}

// roundsRemaining reports, at the end of a RunRepos invocation, how many
// URLs were abandoned after exhausting the retry budget under
// -ignore-download-errors.
var roundsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "symboldb",
	Subsystem: "ingest",
	Name:      "remaining_urls",
	Help:      "URLs still failing after the retry budget was exhausted on the last run.",
})

// SetRemainingURLs records the size of a RunRepos Result's RemainingURL
// list.
func SetRemainingURLs(n int) {
	roundsRemaining.Set(float64(n))
}
