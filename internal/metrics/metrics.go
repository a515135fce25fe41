// Package metrics exposes launcher counters and gauges on a private
// prometheus registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lu-zhengda/launchdeck/internal/apps"
)

const namespace = "launchdeck"

// Metrics holds all prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Discovery
	AppsDiscovered *prometheus.GaugeVec
	ScansTotal     *prometheus.CounterVec
	ScanDuration   prometheus.Histogram

	// Runtime
	RuntimeApps  *prometheus.GaugeVec
	PollDuration prometheus.Histogram
	PollErrors   prometheus.Counter

	// Actions
	Launches  *prometheus.CounterVec
	StopsDone *prometheus.CounterVec

	// News
	NewsRequests *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		AppsDiscovered: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "apps_discovered",
				Help:      "Number of apps in the last discovery result",
			},
			[]string{"bucket"},
		),
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Discovery runs by source (cache, live, fallback)",
			},
			[]string{"source"},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Live discovery scan duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		RuntimeApps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "runtime_apps",
				Help:      "Apps per runtime status after the last poll",
			},
			[]string{"status"},
		),
		PollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "runtime_poll_duration_seconds",
				Help:      "Process inspection duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		PollErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runtime_poll_errors_total",
				Help:      "Runtime polls that failed",
			},
		),
		Launches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "launches_total",
				Help:      "Launch attempts by result",
			},
			[]string{"result"},
		),
		StopsDone: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stops_total",
				Help:      "Force-stop attempts by result",
			},
			[]string{"result"},
		),
		NewsRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "news_requests_total",
				Help:      "News lookups by source (live, fallback)",
			},
			[]string{"category", "source"},
		),
	}

	m.registry.MustRegister(
		m.AppsDiscovered, m.ScansTotal, m.ScanDuration,
		m.RuntimeApps, m.PollDuration, m.PollErrors,
		m.Launches, m.StopsDone, m.NewsRequests,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordScan records a discovery result. source is "cache", "live" or
// "fallback"; elapsed is ignored for cache hits.
func (m *Metrics) RecordScan(bucket apps.Bucket, source string, count int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(source).Inc()
	m.AppsDiscovered.WithLabelValues(string(bucket)).Set(float64(count))
	if source != "cache" {
		m.ScanDuration.Observe(elapsed.Seconds())
	}
}

// RecordPoll records one runtime poll. counts maps status to app count.
func (m *Metrics) RecordPoll(counts map[apps.Status]int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.PollDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.PollErrors.Inc()
		return
	}
	for _, status := range []apps.Status{apps.StatusStarting, apps.StatusRunning, apps.StatusStopped} {
		m.RuntimeApps.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func (m *Metrics) RecordLaunch(err error) {
	if m == nil {
		return
	}
	m.Launches.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordStop(err error) {
	if m == nil {
		return
	}
	m.StopsDone.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordNews(category, source string) {
	if m == nil {
		return
	}
	m.NewsRequests.WithLabelValues(category, source).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
