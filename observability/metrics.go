package observability

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// LedgerMetrics tracks transaction application and the event stream.
type LedgerMetrics struct {
	txs         *prometheus.CounterVec
	applyTime   *prometheus.HistogramVec
	events      *prometheus.CounterVec
	subscribers prometheus.Gauge
	nonceErrors prometheus.Counter
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "r2s",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "r2s",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "r2s",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "r2s",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Ledger returns the lazily-initialised ledger metrics.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			txs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "r2s",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Applied transactions segmented by type and outcome.",
			}, []string{"type", "outcome"}),
			applyTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "r2s",
				Subsystem: "ledger",
				Name:      "apply_duration_seconds",
				Help:      "Time spent applying and committing a transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "r2s",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Journaled events segmented by event type.",
			}, []string{"type"}),
			subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "r2s",
				Subsystem: "ledger",
				Name:      "stream_subscribers",
				Help:      "Active event stream subscribers.",
			}),
			nonceErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "r2s",
				Subsystem: "ledger",
				Name:      "nonce_rejections_total",
				Help:      "Transactions rejected before execution because of a nonce mismatch.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.txs,
			ledgerRegistry.applyTime,
			ledgerRegistry.events,
			ledgerRegistry.subscribers,
			ledgerRegistry.nonceErrors,
		)
	})
	return ledgerRegistry
}

// RecordTransaction counts an applied transaction.
func (m *LedgerMetrics) RecordTransaction(txType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	if txType == "" {
		txType = "unknown"
	}
	outcome := "success"
	if !success {
		outcome = "failed"
	}
	m.txs.WithLabelValues(txType, outcome).Inc()
	m.applyTime.WithLabelValues(txType).Observe(duration.Seconds())
}

// RecordEvent counts a journaled event.
func (m *LedgerMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// RecordNonceRejection counts a transaction rejected for its nonce.
func (m *LedgerMetrics) RecordNonceRejection() {
	if m == nil {
		return
	}
	m.nonceErrors.Inc()
}

// SubscriberAdded and SubscriberRemoved track the live stream population.
func (m *LedgerMetrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *LedgerMetrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
