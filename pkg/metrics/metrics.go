package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CheckCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitoring_check_cycles_total",
			Help: "Total number of monitoring cycles by outcome (count)",
		},
		[]string{"status"},
	)

	CheckCycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monitoring_check_cycle_duration_ms",
			Help:    "Duration of a full monitoring cycle in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"status"},
	)

	CheckCyclesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "monitoring_check_cycles_in_flight",
			Help: "Number of monitoring cycles currently running (count)",
		},
	)

	ChangeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitoring_change_events_total",
			Help: "Total number of detected change events by kind (count)",
		},
		[]string{"kind"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitoring_alerts_total",
			Help: "Total number of competitor change sets that raised an alert (count)",
		},
		[]string{"provenance"},
	)

	FetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Total number of upstream listing fetch attempts by outcome (count)",
		},
		[]string{"fetcher", "status"},
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_ms",
			Help:    "Duration of a single upstream listing fetch attempt in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"fetcher"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"component"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times the deterministic fallback snapshot was used (count)",
		},
		[]string{"reason"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of alert notifications by channel and outcome (count)",
		},
		[]string{"channel", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"topic"},
	)

	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of config and snapshot store operations (count)",
		},
		[]string{"store", "backend", "operation", "status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_ms",
			Help:    "Duration of config and snapshot store operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"store", "backend", "operation"},
	)

	MonitoredKeywords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "monitoring_configured_keywords",
			Help: "Number of keywords with a monitoring config (count)",
		},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CheckCyclesTotal,
			CheckCycleDuration,
			CheckCyclesInFlight,
			ChangeEventsTotal,
			AlertsTotal,
			FetchAttemptsTotal,
			FetchDuration,
			RetryAttemptsTotal,
			FallbackUsageTotal,
			NotificationsTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			RateLimitRequestsTotal,
			KafkaMessagesWrittenTotal,
			KafkaWriteDuration,
			StoreOperationsTotal,
			StoreOperationDuration,
			MonitoredKeywords,
		)
	})
}

func ObserveCheckCycle(duration time.Duration, status string) {
	CheckCyclesTotal.WithLabelValues(status).Inc()
	CheckCycleDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func AddChangeEvents(kind string, n int) {
	if n > 0 {
		ChangeEventsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

func IncAlert(provenance string) {
	AlertsTotal.WithLabelValues(provenance).Inc()
}

func ObserveFetch(fetcher, status string, duration time.Duration) {
	FetchAttemptsTotal.WithLabelValues(fetcher, status).Inc()
	FetchDuration.WithLabelValues(fetcher).Observe(float64(duration.Milliseconds()))
}

func IncRetry(component string) {
	RetryAttemptsTotal.WithLabelValues(component).Inc()
}

func IncFallback(reason string) {
	FallbackUsageTotal.WithLabelValues(reason).Inc()
}

func IncNotification(channel, status string) {
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}

func IncKafkaMessagesWritten(topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
}

func ObserveKafkaWriteDuration(topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(topic).Observe(float64(duration.Milliseconds()))
}

func ObserveStoreOperation(store, backend, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StoreOperationsTotal.WithLabelValues(store, backend, operation, status).Inc()
	StoreOperationDuration.WithLabelValues(store, backend, operation).Observe(float64(duration.Milliseconds()))
}

func SetMonitoredKeywords(count int) {
	MonitoredKeywords.Set(float64(count))
}
