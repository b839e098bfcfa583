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
	mirrorDriftCounter    *prometheus.CounterVec
	idempotencyCounter    *prometheus.CounterVec
	pendingSettlements    prometheus.Gauge
	settlementCounter     *prometheus.CounterVec
	operationCounter      *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		mirrorDriftCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "investments_mirror_drift_total",
			Help: "Number of times the investments bucket diverged from the sum of position balances",
		}, []string{"source"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		pendingSettlements = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_pending_settlements",
			Help: "Current number of ledger entries waiting for settlement",
		})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_settlements_total",
			Help: "Settlement decisions by action",
		}, []string{"action"})

		operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_operations_total",
			Help: "Money movement operations by classification and result",
		}, []string{"classification", "result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			mirrorDriftCounter,
			idempotencyCounter,
			pendingSettlements,
			settlementCounter,
			operationCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// IncrementMirrorDrift counts an investments mirror mismatch. source is "tx" or "reconciliation".
func IncrementMirrorDrift(source string) {
	if mirrorDriftCounter == nil {
		return
	}
	mirrorDriftCounter.WithLabelValues(source).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func SetPendingSettlements(size int64) {
	if pendingSettlements == nil {
		return
	}
	pendingSettlements.Set(float64(size))
}

func IncrementSettlement(action string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(action).Inc()
}

func IncrementOperation(classification, result string) {
	if operationCounter == nil {
		return
	}
	operationCounter.WithLabelValues(classification, result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
