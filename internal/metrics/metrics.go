// Package metrics exposes Prometheus counters for the import pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "diplom"

var (
	registerOnce sync.Once

	searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_searches_total",
		Help:      "Catalog searches by source and outcome",
	}, []string{"source", "outcome"})
	searchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_search_duration_seconds",
		Help:      "Catalog search latency by source",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"source"})
	imports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "imports_total",
		Help:      "Import attempts by source and result",
	}, []string{"source", "result"})
	refreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Metadata refreshes by source and result",
	}, []string{"source", "result"})
	retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Retries scheduled by policy",
	}, []string{"policy"})
	retriesExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_exhausted_total",
		Help:      "Calls that failed after the policy ran out of retries",
	}, []string{"policy"})
	taskSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_submitted_total",
		Help:      "Background tasks submitted by kind",
	}, []string{"kind"})
	taskSucceeded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_succeeded_total",
		Help:      "Background tasks that succeeded by kind",
	}, []string{"kind"})
	taskFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_failed_total",
		Help:      "Background tasks that failed by kind",
	}, []string{"kind"})
	taskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Background task run time by kind",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.6, 12),
	}, []string{"kind"})
	staleQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_records_queued_total",
		Help:      "Stale imported records queued for refresh",
	})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(searches, searchDuration, imports, refreshes, retries, retriesExhausted,
			taskSubmitted, taskSucceeded, taskFailed, taskDuration, staleQueued)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// Search helpers
func IncSearch(source, outcome string) { searches.WithLabelValues(source, outcome).Inc() }
func ObserveSearchDuration(source string, d time.Duration) {
	searchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// Import pipeline helpers
func IncImport(source, result string)  { imports.WithLabelValues(source, result).Inc() }
func IncRefresh(source, result string) { refreshes.WithLabelValues(source, result).Inc() }
func IncRetry(policy string)           { retries.WithLabelValues(policy).Inc() }
func IncRetriesExhausted(policy string) {
	retriesExhausted.WithLabelValues(policy).Inc()
}
func AddStaleQueued(n int) { staleQueued.Add(float64(n)) }

// Task lifecycle helpers
func IncTaskSubmitted(kind string) { taskSubmitted.WithLabelValues(kind).Inc() }
func IncTaskSucceeded(kind string) { taskSucceeded.WithLabelValues(kind).Inc() }
func IncTaskFailed(kind string)    { taskFailed.WithLabelValues(kind).Inc() }
func ObserveTaskDuration(kind string, d time.Duration) {
	taskDuration.WithLabelValues(kind).Observe(d.Seconds())
}
