package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "walletgnn"

var (
	// GraphBuildDuration observes end-to-end graph construction latency.
	GraphBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "graph_build_duration_seconds",
		Help:      "Time spent fetching rows and materialising a transaction graph.",
		Buckets:   prometheus.DefBuckets,
	})

	// StoreQueryFailures counts recovered transaction store failures by category.
	StoreQueryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_query_failures_total",
			Help:      "Store lookups that failed and were treated as absent rows.",
		},
		[]string{"category"},
	)

	// ScoresTotal counts risk assessments by category (HIGH/MEDIUM/LOW).
	ScoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_total",
			Help:      "Risk assessments produced, by risk category.",
		},
		[]string{"category"},
	)

	// UnknownAddresses counts lookups that fell back to the default score.
	UnknownAddresses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unknown_addresses_total",
		Help:      "Scoring requests for addresses without qualifying transactions.",
	})

	TrainingEpochs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "training_epochs_total",
		Help:      "Completed training epochs.",
	})

	TrainingLoss = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "training_loss",
		Help:      "Binary cross-entropy loss of the most recent epoch.",
	})

	// ModelLoaded is 1 once a parameter blob is active.
	ModelLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "model_loaded",
		Help:      "Whether a trained model is loaded (1) or not (0).",
	})

	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_websocket_clients",
		Help:      "Number of connected risk-alert stream clients.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		GraphBuildDuration,
		StoreQueryFailures,
		ScoresTotal,
		UnknownAddresses,
		TrainingEpochs,
		TrainingLoss,
		ModelLoaded,
		ActiveWebSocketClients,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Middleware records request count and latency per route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(c.Request.Method, c.FullPath()))
		c.Next()
		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), statusBucket(c.Writer.Status())).Inc()
	}
}

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
