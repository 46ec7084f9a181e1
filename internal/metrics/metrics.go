// Package metrics exposes Prometheus collectors for the auto-cache warmer.
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
	warmerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warmer_runs_total",
			Help: "Total number of auto-cache runs, labeled by status.",
		},
		[]string{"status"},
	)

	warmerRunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warmer_run_duration_seconds",
			Help:    "Histogram of completed auto-cache run durations.",
			Buckets: []float64{1, 10, 60, 300, 600, 900, 1800, 3600},
		},
	)

	warmerURLsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warmer_urls_total",
			Help: "Total number of URLs probed, labeled by probe outcome.",
		},
		[]string{"outcome"},
	)

	warmerSitemapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warmer_sitemaps_total",
			Help: "Total number of sitemap documents visited, labeled by result.",
		},
		[]string{"result"},
	)

	warmerLogWriteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warmer_log_write_errors_total",
			Help: "Total number of failed writes to the auto-cache log.",
		},
	)

	warmerWarmResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warmer_warm_responses_total",
			Help: "Responses to warming requests, labeled by site and status class.",
		},
		[]string{"site", "status"},
	)

	warmerPacingDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warmer_pacing_delay_seconds",
			Help:    "Histogram of waits inserted between warming requests.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
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

// ObserveRun counts a run and, for completed runs, records its duration.
func ObserveRun(status string, elapsed time.Duration) {
	warmerRunsTotal.WithLabelValues(status).Inc()
	if status == "completed" {
		warmerRunDurationSeconds.Observe(elapsed.Seconds())
	}
}

// ObserveURL counts a probed URL by outcome.
func ObserveURL(outcome string) {
	warmerURLsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSitemap counts a visited sitemap document by result.
func ObserveSitemap(result string) {
	warmerSitemapsTotal.WithLabelValues(result).Inc()
}

// ObserveLogWriteError counts a failed run log write.
func ObserveLogWriteError() {
	warmerLogWriteErrorsTotal.Inc()
}

// ObserveWarmResponse records the eventual answer to a warming request.
func ObserveWarmResponse(rawURL string, code int) {
	warmerWarmResponsesTotal.WithLabelValues(SanitizeSite(rawURL), statusClass(code)).Inc()
}

// ObservePacingDelay records the duration of a pacing wait.
func ObservePacingDelay(d time.Duration) {
	warmerPacingDelaySeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "error"
	}
}
