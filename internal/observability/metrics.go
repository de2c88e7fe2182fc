package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	cacheEventCounter     *prometheus.CounterVec
	txRetryCounter        *prometheus.CounterVec
	ticketNumberCounter   *prometheus.CounterVec
	ticketNumberDelta     *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		cacheEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_events_total",
			Help: "Read-through cache outcomes",
		}, []string{"key", "outcome"})

		txRetryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "db_transaction_retries_total",
			Help: "Transactions re-run after a transient store failure",
		}, []string{"result"})

		ticketNumberCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_number_reconciliations_total",
			Help: "Ticket-number pool resize outcomes",
		}, []string{"outcome"})

		ticketNumberDelta = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_numbers_changed_total",
			Help: "Ticket-number rows inserted or deleted by reconciliation",
		}, []string{"direction"})

		prometheus.MustRegister(
			httpDurationHistogram,
			cacheEventCounter,
			txRetryCounter,
			ticketNumberCounter,
			ticketNumberDelta,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementCacheEvent(key, outcome string) {
	if cacheEventCounter == nil {
		return
	}
	cacheEventCounter.WithLabelValues(key, outcome).Inc()
}

func IncrementTxRetry(result string) {
	if txRetryCounter == nil {
		return
	}
	txRetryCounter.WithLabelValues(result).Inc()
}

func IncrementTicketNumberReconciliation(outcome string, changed int) {
	if ticketNumberCounter == nil {
		return
	}
	ticketNumberCounter.WithLabelValues(outcome).Inc()
	if changed > 0 {
		ticketNumberDelta.WithLabelValues(outcome).Add(float64(changed))
	}
}
