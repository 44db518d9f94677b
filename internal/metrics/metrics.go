// Package metrics exposes Prometheus collectors for the phrase watcher.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	checksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phrasewatch_checks_total",
			Help: "Total number of page checks, labeled by site and outcome.",
		},
		[]string{"site", "outcome"},
	)

	lastOccurrences = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phrasewatch_last_occurrences",
			Help: "Occurrence count observed by the most recent successful check.",
		},
		[]string{"site"},
	)

	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phrasewatch_fetch_attempts_total",
			Help: "Total number of fetch attempts, labeled by result.",
		},
		[]string{"result"},
	)

	fetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phrasewatch_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies including retries.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phrasewatch_notifications_total",
			Help: "Total number of notifications, labeled by kind and result.",
		},
		[]string{"kind", "result"},
	)

	schedulerPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phrasewatch_scheduler_panics_total",
			Help: "Total number of recovered panics in scheduled runs.",
		},
	)

	robotsFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phrasewatch_robots_fallback_total",
			Help: "Total robots.txt probes that fell back to allow-all after TLS timeouts.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCheck records one check outcome. count is only recorded for
// completed checks.
func ObserveCheck(site, outcome string, count int, completed bool) {
	sanitized := SanitizeSite(site)
	checksTotal.WithLabelValues(sanitized, outcome).Inc()
	if completed {
		lastOccurrences.WithLabelValues(sanitized).Set(float64(count))
	}
}

// ObserveFetchAttempt counts a single fetch attempt by result
// ("ok", "retry", "error").
func ObserveFetchAttempt(result string) {
	fetchAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveFetchDuration records the wall time of a fetch including retries.
func ObserveFetchDuration(d time.Duration) {
	fetchDurationSeconds.Observe(d.Seconds())
}

// ObserveNotification counts a notification delivery attempt.
func ObserveNotification(kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveSchedulerPanic counts a recovered panic.
func ObserveSchedulerPanic() {
	schedulerPanicsTotal.Inc()
}

// ObserveRobotsFallback counts a robots.txt allow-all fallback.
func ObserveRobotsFallback() {
	robotsFallbackTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
