package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status_code"},
	)
)

var (
	PurchaseAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_attempts_total",
			Help: "Total number of purchase attempts",
		},
	)

	PurchaseSuccessTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_success_total",
			Help: "Total number of committed purchases",
		},
	)

	PurchaseFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_failure_total",
			Help: "Total number of rejected purchases by error kind",
		},
		[]string{"reason"},
	)

	PurchaseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "purchase_duration_seconds",
			Help:    "Duration of the allocation path in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	IdempotentReplaysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_idempotent_replays_total",
			Help: "Purchases answered from a stored receipt",
		},
	)

	UnitsSoldTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flash_sale_units_sold_total",
			Help: "Units sold per flash sale",
		},
		[]string{"flash_sale_id"},
	)

	ProductStockRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flash_sale_product_stock_remaining",
			Help: "Remaining stock observed on the last committed purchase",
		},
		[]string{"flash_sale_id", "flash_sale_product_id"},
	)

	SaleViewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flash_sale_views_total",
			Help: "Total number of recorded sale views",
		},
	)

	CASRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_cas_retries_total",
			Help: "Compare-and-swap attempts lost to a concurrent writer",
		},
		[]string{"ledger"},
	)

	CompensationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_compensation_failures_total",
			Help: "Quota claims that could not be released after a failed reservation",
		},
	)

	ReceiptPersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_receipt_persist_failures_total",
			Help: "Committed idempotent purchases whose receipt could not be stored",
		},
	)

	MetricsDriftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sale_metrics_drift_total",
			Help: "Committed purchases whose sales counter update failed after all retries",
		},
	)

	AnalyticsPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_publish_failures_total",
			Help: "Analytics events that could not be delivered",
		},
		[]string{"event_type"},
	)

	ViewsFlushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flash_sale_views_flushed_total",
			Help: "Buffered views moved into the database",
		},
	)
)

var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	DBConnectionsWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_wait_count",
			Help: "Total connections waited for since the pool opened",
		},
	)

	DBConnectionWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_connection_wait_seconds_total",
			Help: "Time spent waiting for a free connection",
		},
	)

	DBQueryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Database queries that returned an error",
		},
		[]string{"query_type", "table"},
	)
)

var (
	RedisCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_command_duration_seconds",
			Help:    "Duration of Redis commands in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"command", "keyspace"},
	)

	RedisCommandErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_command_errors_total",
			Help: "Redis commands that failed, excluding cache misses",
		},
		[]string{"command", "keyspace"},
	)

	RedisLockSuccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_lock_success_total",
			Help: "Total number of successful lock acquisitions",
		},
		[]string{"lock_type"},
	)

	RedisLockFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_lock_failure_total",
			Help: "Total number of failed lock acquisitions",
		},
		[]string{"lock_type", "reason"},
	)

	RedisLockDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_lock_duration_seconds",
			Help:    "Duration of lock hold time in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"lock_type"},
	)

	BloomLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloom_lookups_total",
			Help: "Bloom filter lookups by filter and result",
		},
		[]string{"filter", "result"},
	)
)

func TimeDBQuery(queryType, table string) func() {
	start := time.Now()
	return func() {
		DBQueryDuration.WithLabelValues(queryType, table).Observe(time.Since(start).Seconds())
	}
}

func ObserveLockHold(lockKey string, held time.Duration) {
	RedisLockDuration.WithLabelValues(getLockType(lockKey)).Observe(held.Seconds())
}

func RecordCASRetry(ledger string) {
	CASRetriesTotal.WithLabelValues(ledger).Inc()
}

func RecordView() {
	SaleViewsTotal.Inc()
}

func RecordUnitsSold(saleID, productID string, units, remaining int) {
	UnitsSoldTotal.WithLabelValues(saleID).Add(float64(units))
	ProductStockRemaining.WithLabelValues(saleID, productID).Set(float64(remaining))
}

func RecordLockSuccess(lockKey string) {
	RedisLockSuccessTotal.WithLabelValues(getLockType(lockKey)).Inc()
}

func RecordLockFailure(lockKey, reason string) {
	RedisLockFailureTotal.WithLabelValues(getLockType(lockKey), reason).Inc()
}

func RecordBloomLookup(filter string, hit bool) {
	result := "miss"
	if hit {
		result = "maybe"
	}
	BloomLookupsTotal.WithLabelValues(filter, result).Inc()
}

func getLockType(lockKey string) string {
	for i := 0; i < len(lockKey); i++ {
		if lockKey[i] == ':' {
			return lockKey[:i]
		}
	}
	if lockKey == "" {
		return "unknown"
	}
	return "other"
}
