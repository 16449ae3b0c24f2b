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
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Evaluations 按最终状态统计评测次数，recorded 区分预览与正式提交
	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homework_evaluations_total",
			Help: "Answer evaluations by resulting state",
		},
		[]string{"state", "recorded"},
	)

	WriteConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "homework_write_conflicts_total",
			Help: "Conditional writes that lost a race and were retried",
		},
	)

	AnswerKeyLookupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "homework_answer_key_lookup_failures_total",
			Help: "Answer key lookups that degraded to the zero value",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(Evaluations)
		prometheus.MustRegister(WriteConflicts)
		prometheus.MustRegister(AnswerKeyLookupFailures)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
