package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты HTTP попытки.
const (
	AttemptOK          = "ok"
	AttemptHTTPError   = "http_error"
	AttemptTransport   = "transport_error"
	AttemptDecodeError = "decode_error"
	AttemptTooLarge    = "too_large"
)

// Исходы шага.
const (
	StepOK         = "ok"
	StepFetchError = "fetch_error"
	StepDryRun     = "dry_run"
)

var (
	httpAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_attempts_total",
			Help: "Total HTTP attempts made by the step invoker by result",
		},
		[]string{"result"},
	)

	httpDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "Duration of a single HTTP attempt",
			Buckets: prometheus.DefBuckets,
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_runs_total",
			Help: "Total runs by terminal status",
		},
		[]string{"status"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_run_duration_seconds",
			Help:    "Duration of a run from scheduling to the last group",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_steps_total",
			Help: "Total executed steps by outcome",
		},
		[]string{"outcome"},
	)

	apiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_http_requests_total",
			Help: "Total HTTP requests handled by the API by method and status code",
		},
		[]string{"method", "code"},
	)

	mqReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_mq_reconnects_total",
			Help: "Total successful RabbitMQ reconnects",
		},
	)

	mqDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_mq_deliveries_total",
			Help: "Total consumed messages by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	mqPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_mq_published_total",
			Help: "Total published messages by type and result",
		},
		[]string{"type", "result"},
	)

	groupsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_groups_in_flight",
			Help: "Number of groups currently executing",
		},
	)
)

// RecordHTTPAttempt учитывает одну HTTP попытку.
func RecordHTTPAttempt(result string, d time.Duration) {
	httpAttempts.WithLabelValues(result).Inc()
	httpDuration.Observe(d.Seconds())
}

// RecordRun учитывает завершённый run.
func RecordRun(status string, d time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDuration.Observe(d.Seconds())
}

// RecordStep учитывает выполненный шаг.
func RecordStep(outcome string) {
	stepsTotal.WithLabelValues(outcome).Inc()
}

// GroupStarted увеличивает число выполняющихся групп.
func GroupStarted() {
	groupsInFlight.Inc()
}

// GroupFinished уменьшает число выполняющихся групп.
func GroupFinished() {
	groupsInFlight.Dec()
}

// RecordAPIRequest учитывает обработанный API запрос.
func RecordAPIRequest(method string, status int) {
	apiRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordMQReconnect учитывает переподключение к RabbitMQ.
func RecordMQReconnect() {
	mqReconnects.Inc()
}

// RecordMQDelivery учитывает обработанное сообщение.
func RecordMQDelivery(queue, outcome string) {
	mqDeliveries.WithLabelValues(queue, outcome).Inc()
}

// RecordMQPublish учитывает публикацию сообщения.
func RecordMQPublish(msgType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mqPublished.WithLabelValues(msgType, result).Inc()
}
