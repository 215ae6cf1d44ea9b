package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Commit metrics
	CommitsTotal      *prometheus.CounterVec
	CommitDuration    *prometheus.HistogramVec
	CommitOperations  *prometheus.CounterVec
	CommitPollSeconds prometheus.Histogram

	// LFS metrics
	LFSBatchTotal     *prometheus.CounterVec
	LFSUploadsTotal   *prometheus.CounterVec
	LFSDownloadsTotal prometheus.Counter
	LFSBytesTotal     *prometheus.CounterVec

	// GC metrics
	GCRunsTotal       *prometheus.CounterVec
	GCDeletedObjects  prometheus.Counter
	GCFreedBytesTotal prometheus.Counter

	// Git bridge metrics
	GitRequestsTotal *prometheus.CounterVec
	GitPackBytes     prometheus.Counter

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "kohakuhub"
	}

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Commit metrics
		CommitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "commit",
				Name:      "commits_total",
				Help:      "Total number of commits processed",
			},
			[]string{"repo_type", "status"},
		),
		CommitDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "commit",
				Name:      "duration_seconds",
				Help:      "Commit processing duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"repo_type"},
		),
		CommitOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "commit",
				Name:      "operations_total",
				Help:      "Total number of commit file operations",
			},
			[]string{"operation"}, // file, lfsFile, deletedFile, deletedFolder, copyFile
		),
		CommitPollSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "commit",
				Name:      "visibility_poll_seconds",
				Help:      "Time spent waiting for committed objects to become visible",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		// LFS metrics
		LFSBatchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lfs",
				Name:      "batch_requests_total",
				Help:      "Total number of LFS batch requests",
			},
			[]string{"operation"}, // upload, download
		),
		LFSUploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lfs",
				Name:      "uploads_total",
				Help:      "Total number of LFS object uploads",
			},
			[]string{"mode", "status"}, // mode: single, multipart
		),
		LFSDownloadsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lfs",
				Name:      "downloads_total",
				Help:      "Total number of LFS object downloads",
			},
		),
		LFSBytesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lfs",
				Name:      "bytes_total",
				Help:      "Total LFS bytes transferred",
			},
			[]string{"direction"}, // upload, download
		),

		// GC metrics
		GCRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "runs_total",
				Help:      "Total number of garbage collection runs",
			},
			[]string{"kind", "status"}, // kind: retention, repo, manual
		),
		GCDeletedObjects: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "deleted_objects_total",
				Help:      "Total number of objects deleted by garbage collection",
			},
		),
		GCFreedBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gc",
				Name:      "freed_bytes_total",
				Help:      "Total bytes freed by garbage collection",
			},
		),

		// Git bridge metrics
		GitRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "git",
				Name:      "requests_total",
				Help:      "Total number of git smart HTTP requests",
			},
			[]string{"service", "status"},
		),
		GitPackBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "git",
				Name:      "pack_bytes_total",
				Help:      "Total packfile bytes served",
			},
		),

		// Cache metrics
		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommit records a processed commit.
func (m *Metrics) RecordCommit(repoType, status string, duration time.Duration) {
	m.CommitsTotal.WithLabelValues(repoType, status).Inc()
	m.CommitDuration.WithLabelValues(repoType).Observe(duration.Seconds())
}

// RecordCommitOperation records a single file operation within a commit.
func (m *Metrics) RecordCommitOperation(operation string) {
	m.CommitOperations.WithLabelValues(operation).Inc()
}

// RecordLFSBatch records an LFS batch request.
func (m *Metrics) RecordLFSBatch(operation string) {
	m.LFSBatchTotal.WithLabelValues(operation).Inc()
}

// RecordLFSUpload records a completed or failed LFS upload.
func (m *Metrics) RecordLFSUpload(mode, status string, bytes int64) {
	m.LFSUploadsTotal.WithLabelValues(mode, status).Inc()
	if bytes > 0 {
		m.LFSBytesTotal.WithLabelValues("upload").Add(float64(bytes))
	}
}

// RecordLFSDownload records an LFS download redirect.
func (m *Metrics) RecordLFSDownload(bytes int64) {
	m.LFSDownloadsTotal.Inc()
	if bytes > 0 {
		m.LFSBytesTotal.WithLabelValues("download").Add(float64(bytes))
	}
}

// RecordGCRun records a garbage collection run.
func (m *Metrics) RecordGCRun(kind, status string, deleted int, freedBytes int64) {
	m.GCRunsTotal.WithLabelValues(kind, status).Inc()
	if deleted > 0 {
		m.GCDeletedObjects.Add(float64(deleted))
	}
	if freedBytes > 0 {
		m.GCFreedBytesTotal.Add(float64(freedBytes))
	}
}

// RecordGitRequest records a git smart HTTP request.
func (m *Metrics) RecordGitRequest(service string, status int) {
	m.GitRequestsTotal.WithLabelValues(service, statusCodeToString(status)).Inc()
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(cache string) {
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(cache string) {
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
