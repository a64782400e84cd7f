package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AvailabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_availability_checks_total",
			Help: "Quiz availability evaluations by resulting status",
		},
		[]string{"status"},
	)

	SweepAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sweep_attempts_total",
			Help: "Attempts processed by the stale-attempt sweep by outcome",
		},
		[]string{"outcome"},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_sweep_duration_seconds",
			Help:    "Duration of stale-attempt sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	Reassignments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_reassignments_total",
			Help: "Reassignment enrollments created",
		},
	)

	FalseCompletionsCorrected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_false_completions_corrected_total",
			Help: "Completed attempts reverted to abandoned by administrative correction",
		},
	)
)

var initOnce sync.Once

// Init 注册全部指标，可重复调用
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AvailabilityChecks,
			SweepAttempts,
			SweepDuration,
			Reassignments,
			FalseCompletionsCorrected,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
