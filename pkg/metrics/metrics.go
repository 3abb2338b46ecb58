package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     atomic.Bool

	// Capture metrics
	CapturesTotal   *prometheus.CounterVec
	CaptureDuration prometheus.Histogram
	CaptureActive   prometheus.Gauge

	// Analysis metrics
	AnalysesTotal   *prometheus.CounterVec
	AnalysisLatency *prometheus.HistogramVec
	StressScore     prometheus.Histogram

	// STT metrics
	STTRequestsTotal    *prometheus.CounterVec
	STTLatency          *prometheus.HistogramVec
	STTWordsTranscribed *prometheus.CounterVec

	// Sentiment metrics
	ClassificationsTotal *prometheus.CounterVec

	// Store metrics
	StoreWritesTotal *prometheus.CounterVec

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionStatus  prometheus.Gauge

	// Websocket metrics
	WebsocketClients prometheus.Gauge

	// HTTP metrics
	RateLimitedRequests *prometheus.CounterVec
)

func init() {
	metricsEnabled.Store(true)
}

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		CapturesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cognivox_captures_total",
				Help: "Total number of capture attempts by outcome",
			},
			[]string{"status"},
		)

		CaptureDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cognivox_capture_duration_seconds",
				Help:    "Length of completed voice captures",
				Buckets: prometheus.LinearBuckets(5, 15, 12),
			},
		)

		CaptureActive = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cognivox_capture_active",
				Help: "1 while a recording session is capturing",
			},
		)

		AnalysesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cognivox_analyses_total",
				Help: "Total number of speech analyses by backend and outcome",
			},
			[]string{"backend", "status"},
		)

		AnalysisLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cognivox_analysis_latency_seconds",
				Help:    "End to end latency of a speech analysis",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"backend"},
		)

		StressScore = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cognivox_stress_score",
				Help:    "Distribution of computed stress scores",
				Buckets: prometheus.LinearBuckets(10, 10, 9),
			},
		)

		STTRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cognivox_stt_requests_total",
				Help: "Total number of STT requests",
			},
			[]string{"vendor", "status"},
		)

		STTLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cognivox_stt_latency_seconds",
				Help:    "Latency of STT requests",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"vendor"},
		)

		STTWordsTranscribed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cognivox_stt_words_transcribed_total",
				Help: "Total number of words transcribed",
			},
			[]string{"vendor"},
		)

		ClassificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cognivox_sentiment_classifications_total",
				Help: "Total number of sentiment classifications by classifier and label",
			},
			[]string{"classifier", "label"},
		)

		StoreWritesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cognivox_store_writes_total",
				Help: "Total number of collection writes",
			},
			[]string{"collection", "status"},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cognivox_amqp_published_messages_total",
				Help: "Total number of messages published to AMQP",
			},
			[]string{"queue", "status"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cognivox_amqp_connection_status",
				Help: "AMQP connection status (1 = connected, 0 = disconnected)",
			},
		)

		WebsocketClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cognivox_websocket_clients",
				Help: "Number of connected analysis event subscribers",
			},
		)

		RateLimitedRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cognivox_http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limit",
			},
			[]string{"path"},
		)

		registry.MustRegister(
			CapturesTotal,
			CaptureDuration,
			CaptureActive,
			AnalysesTotal,
			AnalysisLatency,
			StressScore,
			STTRequestsTotal,
			STTLatency,
			STTWordsTranscribed,
			ClassificationsTotal,
			StoreWritesTotal,
			AMQPPublishedMessages,
			AMQPConnectionStatus,
			WebsocketClients,
			RateLimitedRequests,
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	return registry
}

// EnableMetrics enables or disables metrics collection
func EnableMetrics(enabled bool) {
	metricsEnabled.Store(enabled)
}

// IsMetricsEnabled returns whether metrics are enabled
func IsMetricsEnabled() bool {
	return metricsEnabled.Load()
}

// active reports whether recording helpers should touch the collectors
func active() bool {
	return metricsEnabled.Load() && registry != nil
}

// RegisterHandler registers the metrics HTTP handler
func RegisterHandler(mux *http.ServeMux) {
	if !active() {
		return
	}
	handler := promhttp.HandlerFor(
		registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          registry,
		},
	)
	mux.Handle(defaultMetricsPath, handler)
}

// StartMetrics initializes the metrics service
func StartMetrics(logger *logrus.Logger, enabled bool) {
	if !enabled {
		EnableMetrics(false)
		logger.Info("Metrics collection is disabled")
		return
	}

	Init(logger)
	EnableMetrics(true)
	logger.WithField("metrics_path", defaultMetricsPath).Info("Metrics endpoint initialized")
}

// RecordCapture records the outcome of a capture start or stop
func RecordCapture(status string) {
	if active() {
		CapturesTotal.WithLabelValues(status).Inc()
	}
}

// SetCaptureActive flips the active capture gauge
func SetCaptureActive(capturing bool) {
	if !active() {
		return
	}
	if capturing {
		CaptureActive.Set(1)
	} else {
		CaptureActive.Set(0)
	}
}

// ObserveCaptureDuration records the length of a finished capture
func ObserveCaptureDuration(seconds int) {
	if active() {
		CaptureDuration.Observe(float64(seconds))
	}
}

// RecordAnalysis records an analysis outcome and, on success, the stress score
func RecordAnalysis(backend, status string, stressScore float64) {
	if !active() {
		return
	}
	AnalysesTotal.WithLabelValues(backend, status).Inc()
	if status == "success" {
		StressScore.Observe(stressScore)
	}
}

// ObserveAnalysisLatency returns a function that records the elapsed analysis time
func ObserveAnalysisLatency(backend string) func() {
	if !active() {
		return func() {}
	}

	start := time.Now()
	return func() {
		AnalysisLatency.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	}
}

// RecordSTTRequest records metrics for an STT request
func RecordSTTRequest(vendor, status string) {
	if active() {
		STTRequestsTotal.WithLabelValues(vendor, status).Inc()
	}
}

// RecordSTTWords adds the word count of a transcript
func RecordSTTWords(vendor string, words int) {
	if active() && words > 0 {
		STTWordsTranscribed.WithLabelValues(vendor).Add(float64(words))
	}
}

// ObserveSTTLatency records STT latency with a timer function
func ObserveSTTLatency(vendor string) func() {
	if !active() {
		return func() {}
	}

	start := time.Now()
	return func() {
		STTLatency.WithLabelValues(vendor).Observe(time.Since(start).Seconds())
	}
}

// RecordClassification records the dominant label returned by a classifier
func RecordClassification(classifier, label string) {
	if active() {
		ClassificationsTotal.WithLabelValues(classifier, label).Inc()
	}
}

// RecordStoreWrite records a collection write
func RecordStoreWrite(collection, status string) {
	if active() {
		StoreWritesTotal.WithLabelValues(collection, status).Inc()
	}
}

// RecordAMQPPublish records metrics for an AMQP publish
func RecordAMQPPublish(queue, status string) {
	if active() {
		AMQPPublishedMessages.WithLabelValues(queue, status).Inc()
	}
}

// SetAMQPConnectionStatus sets the AMQP connection status
func SetAMQPConnectionStatus(connected bool) {
	if !active() {
		return
	}
	if connected {
		AMQPConnectionStatus.Set(1)
	} else {
		AMQPConnectionStatus.Set(0)
	}
}

// SetWebsocketClients records the number of connected subscribers
func SetWebsocketClients(n int) {
	if active() {
		WebsocketClients.Set(float64(n))
	}
}

// RecordRateLimited counts a request rejected by the rate limiter
func RecordRateLimited(path string) {
	if active() {
		RateLimitedRequests.WithLabelValues(path).Inc()
	}
}
