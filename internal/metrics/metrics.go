// Package metrics exposes Prometheus collectors for the analyzer service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "job_analyzer"

var scoreBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

var (
	requestsTotal             *prometheus.CounterVec
	requestDurationSeconds    *prometheus.HistogramVec
	analysisSuccessTotal      prometheus.Counter
	analysisErrorTotal        prometheus.Counter
	completenessScore         prometheus.Histogram
	confidenceScore           prometheus.Histogram
	enrichmentSuccessTotal    *prometheus.CounterVec
	enrichmentErrorTotal      *prometheus.CounterVec
	enrichmentDurationSeconds *prometheus.HistogramVec
	crawlRequestsTotal        *prometheus.CounterVec
	crawlDurationSeconds      prometheus.Histogram
	robotsTxtBlocksTotal      prometheus.Counter
	rateLimitDelaySeconds     *prometheus.HistogramVec
	databaseOperationSeconds  *prometheus.HistogramVec
	activeProfiles            prometheus.Gauge

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total HTTP requests, labeled by endpoint, method and status code.",
			},
			[]string{"endpoint", "method", "status_code"},
		)

		requestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency, labeled by endpoint and method.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"endpoint", "method"},
		)

		analysisSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_success_total",
			Help:      "Total analyses that completed and were persisted.",
		})

		analysisErrorTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_error_total",
			Help:      "Total analyses that failed.",
		})

		completenessScore = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completeness_score",
			Help:      "Distribution of profile completeness scores.",
			Buckets:   scoreBuckets,
		})

		confidenceScore = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence_score",
			Help:      "Distribution of profile confidence scores.",
			Buckets:   scoreBuckets,
		})

		enrichmentSuccessTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichment_success_total",
				Help:      "Successful enrichment calls, labeled by provider.",
			},
			[]string{"provider"},
		)

		enrichmentErrorTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichment_error_total",
				Help:      "Failed enrichment calls, labeled by provider.",
			},
			[]string{"provider"},
		)

		enrichmentDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "enrichment_duration_seconds",
				Help:      "Enrichment call latency, labeled by provider.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		)

		crawlRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crawl_requests_total",
				Help:      "Page fetches, labeled by HTTP status code or \"error\".",
			},
			[]string{"status_code"},
		)

		crawlDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Page fetch latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		})

		robotsTxtBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "robots_txt_blocks_total",
			Help:      "Fetches skipped because robots.txt disallowed them.",
		})

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_limit_delay_seconds",
				Help:      "Time spent waiting on per-domain pacing.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		databaseOperationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "database_operation_duration_seconds",
				Help:      "Repository call latency, labeled by operation.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		)

		activeProfiles = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_profiles",
			Help:      "Number of stored company profiles.",
		})
	})
}

// SanitizeSite extracts a lowercase hostname from a URL.
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
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest records one served API request.
func ObserveHTTPRequest(endpoint, method string, code int, duration time.Duration) {
	Init()
	requestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(code)).Inc()
	requestDurationSeconds.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// ObserveAnalysis records a finished analysis and, on success, its scores.
func ObserveAnalysis(success bool, completeness, confidence float64) {
	Init()
	if !success {
		analysisErrorTotal.Inc()
		return
	}
	analysisSuccessTotal.Inc()
	completenessScore.Observe(completeness)
	confidenceScore.Observe(confidence)
}

// ObserveEnrichment records one provider call.
func ObserveEnrichment(provider string, success bool, duration time.Duration) {
	Init()
	if success {
		enrichmentSuccessTotal.WithLabelValues(provider).Inc()
	} else {
		enrichmentErrorTotal.WithLabelValues(provider).Inc()
	}
	enrichmentDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveCrawl records one page fetch. A zero status code means no response
// was received.
func ObserveCrawl(statusCode int, duration time.Duration) {
	Init()
	label := "error"
	if statusCode > 0 {
		label = strconv.Itoa(statusCode)
	}
	crawlRequestsTotal.WithLabelValues(label).Inc()
	crawlDurationSeconds.Observe(duration.Seconds())
}

// ObserveRobotsBlock increments the robots.txt denial counter.
func ObserveRobotsBlock() {
	Init()
	robotsTxtBlocksTotal.Inc()
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(domain)).Observe(duration.Seconds())
}

// ObserveDBOperation records the latency of a repository call.
func ObserveDBOperation(operation string, duration time.Duration) {
	Init()
	databaseOperationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetActiveProfiles sets the stored profile gauge.
func SetActiveProfiles(n int64) {
	Init()
	activeProfiles.Set(float64(n))
}
