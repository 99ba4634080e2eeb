package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	// Issuance
	issuesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newsletter_issues_published_total",
			Help: "Total number of newsletter issues accepted and fanned out.",
		},
	)
	idempotencyReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_replays_total",
			Help: "Total number of requests answered from a stored idempotency record.",
		},
	)
	enqueuedTasks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delivery_fanout_size",
			Help:    "Distribution of delivery tasks enqueued per issue.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
	)

	// Delivery
	deliveriesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deliveries_sent_total",
			Help: "Total number of delivery tasks resolved as successfully sent.",
		},
	)
	deliveryPermanentFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_permanent_failures_total",
			Help: "Total number of delivery tasks resolved as permanently failed.",
		},
	)
	deliveryRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_retries_total",
			Help: "Total number of transient delivery failures (task kept for retry).",
		},
	)
	deliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delivery_attempt_duration_seconds",
			Help:    "Time spent processing a single claimed delivery task (seconds).",
			Buckets: prometheus.DefBuckets,
		},
	)
	deliveryLagSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delivery_lag_seconds",
			Help:    "Lag between task enqueue and delivery attempt (seconds).",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	queuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_queue_pending",
			Help: "Current number of pending delivery tasks.",
		},
	)
	queueMaxAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_queue_max_attempts",
			Help: "Highest attempt count among pending delivery tasks.",
		},
	)

	// Subscribers
	subscribersByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscribers_count",
			Help: "Current count of subscribers by status.",
		},
		[]string{"status"},
	)

	// Kafka
	failureReportsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "failure_reports_published_total",
			Help: "Total number of permanent-failure reports published to Kafka.",
		},
	)
	kafkaErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_errors_total",
			Help: "Total number of Kafka-related errors.",
		},
		[]string{"component", "operation"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,

			issuesPublished,
			idempotencyReplays,
			enqueuedTasks,

			deliveriesSent,
			deliveryPermanentFailures,
			deliveryRetries,
			deliveryDuration,
			deliveryLagSeconds,
			queuePending,
			queueMaxAttempts,

			subscribersByStatus,

			failureReportsPublished,
			kafkaErrors,
		)
		registerRedisMetrics()
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// --- HTTP ---
func ObserveHTTPRequest(method, route, code string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, code).Inc()
	httpDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// --- Issuance ---
func IncIssuePublished()      { issuesPublished.Inc() }
func IncIdempotencyReplay()   { idempotencyReplays.Inc() }
func ObserveFanoutSize(n int) { enqueuedTasks.Observe(float64(max0(n))) }

// --- Delivery ---
func IncDeliverySent()             { deliveriesSent.Inc() }
func IncDeliveryPermanentFailure() { deliveryPermanentFailures.Inc() }
func IncDeliveryRetry()            { deliveryRetries.Inc() }

func ObserveDeliveryDuration(d time.Duration) { deliveryDuration.Observe(d.Seconds()) }
func ObserveDeliveryLagSeconds(sec float64) {
	if sec < 0 {
		sec = 0
	}
	deliveryLagSeconds.Observe(sec)
}

// --- Kafka ---
func IncFailureReportPublished() { failureReportsPublished.Inc() }
func IncKafkaError(component, operation string) {
	kafkaErrors.WithLabelValues(component, operation).Inc()
}

// --- Gauges (DB collectors) ---
func SetQueuePending(count int64) {
	if count < 0 {
		count = 0
	}
	queuePending.Set(float64(count))
}
func SetQueueMaxAttempts(n int64) {
	if n < 0 {
		n = 0
	}
	queueMaxAttempts.Set(float64(n))
}
func SetSubscribersCount(status string, count int64) {
	if count < 0 {
		count = 0
	}
	subscribersByStatus.WithLabelValues(status).Set(float64(count))
}

// helpers
func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func fmtInt(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [32]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
