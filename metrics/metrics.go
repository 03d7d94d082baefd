package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// 聚合
	AggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpulse_aggregations_total",
			Help: "Aggregation runs by outcome",
		},
		[]string{"outcome"}, // success, failed
	)

	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackpulse_aggregation_duration_seconds",
			Help:    "Duration of a single aggregation (normalize, trend, artifacts)",
			Buckets: prometheus.DefBuckets,
		},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackpulse_pipeline_duration_seconds",
			Help:    "Duration of a triggered scrape-aggregate-deliver run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"}, // delivered, aggregate_failed, delivery_failed, error
	)

	PlatformResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpulse_platform_results_total",
			Help: "Per-platform normalization results",
		},
		[]string{"platform", "result"}, // ok, absent, malformed
	)

	HistoryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpulse_history_errors_total",
			Help: "Series store failures during trend computation",
		},
		[]string{"platform"},
	)

	// 附件
	ArtifactResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpulse_artifact_resolutions_total",
			Help: "Artifact resolution results",
		},
		[]string{"artifact", "result"}, // inline, url, empty, unavailable
	)

	ArtifactFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackpulse_artifact_fetch_duration_seconds",
			Help:    "Duration of remote artifact fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	// 抓取服务
	ScraperRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpulse_scraper_requests_total",
			Help: "Requests sent to the scraping service",
		},
		[]string{"result"}, // success, failure, rejected
	)

	ScraperDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackpulse_scraper_duration_seconds",
			Help:    "Duration of scraping service calls",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	// 通知
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpulse_deliveries_total",
			Help: "Notification deliveries by result",
		},
		[]string{"channel", "result"}, // success, failure
	)

	// 熔断器
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trackpulse_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpulse_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpulse_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackpulse_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Since 从 start 到现在的秒数
func Since(start time.Time) float64 {
	return time.Since(start).Seconds()
}

// Handler Prometheus 抓取端点
func Handler() http.Handler {
	return promhttp.Handler()
}
