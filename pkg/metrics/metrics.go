package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_events_consumed_total",
			Help: "Total number of events read from the bus (count)",
		},
		[]string{"topic"},
	)

	EventsDecodeFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_events_decode_failed_total",
			Help: "Total number of events discarded for malformed payloads (count)",
		},
		[]string{"topic"},
	)

	RuleMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_rule_matches_total",
			Help: "Total number of rule.test evaluations by outcome (count)",
		},
		[]string{"rule", "matched"},
	)

	ExecOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_exec_outcome_total",
			Help: "Total number of exec steps by classification outcome (count)",
		},
		[]string{"rule", "outcome"},
	)

	ExecDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "changeprop_exec_duration_ms",
			Help:    "Duration of a single rendered exec HTTP call in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"rule"},
	)

	EventProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "changeprop_event_processing_duration_ms",
			Help:    "End-to-end duration of processing one event across all matching rules",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"topic"},
	)

	RetriesScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_retries_scheduled_total",
			Help: "Total number of retry envelopes produced (count)",
		},
		[]string{"rule"},
	)

	RetryExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_retry_exhausted_total",
			Help: "Total number of events that exhausted their retry budget (count)",
		},
		[]string{"rule"},
	)

	ErrorsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_errors_emitted_total",
			Help: "Total number of error envelopes produced (count)",
		},
		[]string{"rule", "reason"},
	)

	LoopsDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_loops_detected_total",
			Help: "Total number of dispatches skipped due to triggered_by loop detection (count)",
		},
		[]string{"rule"},
	)

	OffsetsCommittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_offsets_committed_total",
			Help: "Total number of bus offsets committed (count)",
		},
		[]string{"topic"},
	)

	GuaranteedProducerPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "changeprop_guaranteed_producer_pending",
			Help: "Number of in-flight produce calls awaiting a delivery report (count)",
		},
		[]string{"topic"},
	)

	DuplicateKeyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_duplicate_key_total",
			Help: "Total number of produce calls rejected for an in-flight duplicate key (count)",
		},
		[]string{"topic"},
	)

	DedupWindowSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_dedup_window_suppressed_total",
			Help: "Total number of retry produces suppressed by the Redis dedup window (count)",
		},
		[]string{"rule"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "changeprop_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_circuit_breaker_requests_total",
			Help: "Total number of requests through a circuit breaker (count)",
		},
		[]string{"name", "state", "rule"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_circuit_breaker_failures_total",
			Help: "Total number of failures through a circuit breaker (count)",
		},
		[]string{"name", "rule"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "changeprop_kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"topic", "partition"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_fallback_usage_total",
			Help: "Total number of times a fallback strategy fired (count)",
		},
		[]string{"component", "strategy", "reason"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "changeprop_database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"database", "operation"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeprop_admin_rate_limit_requests_total",
			Help: "Total number of admin API requests by rate-limit decision (count)",
		},
		[]string{"decision", "route"},
	)

	ActiveRules = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "changeprop_active_rules",
			Help: "Number of compiled rules currently loaded, by topic (count)",
		},
		[]string{"topic"},
	)
)

func RegisterExecutorMetrics() {
	prometheus.MustRegister(EventsConsumedTotal)
	prometheus.MustRegister(EventsDecodeFailedTotal)
	prometheus.MustRegister(RuleMatchesTotal)
	prometheus.MustRegister(ExecOutcomeTotal)
	prometheus.MustRegister(ExecDuration)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(RetriesScheduledTotal)
	prometheus.MustRegister(RetryExhaustedTotal)
	prometheus.MustRegister(ErrorsEmittedTotal)
	prometheus.MustRegister(LoopsDetectedTotal)
	prometheus.MustRegister(OffsetsCommittedTotal)
	prometheus.MustRegister(ActiveRules)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(GuaranteedProducerPending)
	prometheus.MustRegister(DuplicateKeyTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaConsumerLag)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterDedupWindowMetrics() {
	prometheus.MustRegister(DedupWindowSuppressedTotal)
}

func RegisterFallbackMetrics() {
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterAdminMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterDatabaseMetrics() {
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func ObserveExecDuration(rule string, d time.Duration) {
	ExecDuration.WithLabelValues(rule).Observe(float64(d.Milliseconds()))
}

func ObserveEventProcessingDuration(topic string, d time.Duration) {
	EventProcessingDuration.WithLabelValues(topic).Observe(float64(d.Milliseconds()))
}

func SetKafkaConsumerLag(topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveDatabaseQueryDuration(database, operation string, d time.Duration) {
	DatabaseQueryDuration.WithLabelValues(database, operation).Observe(float64(d.Milliseconds()))
}

func SetActiveRules(topic string, count int) {
	ActiveRules.WithLabelValues(topic).Set(float64(count))
}
