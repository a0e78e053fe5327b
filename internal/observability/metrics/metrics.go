package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "payment_"

	resultSuccess  = "success"
	resultError    = "error"
	resultRejected = "rejected"
)

var (
	registerOnce sync.Once

	approvalTotal   *prometheus.CounterVec
	approvalLatency *prometheus.HistogramVec

	gatewayCalls      *prometheus.CounterVec
	gatewayFallback   *prometheus.CounterVec
	mockSubstitutions prometheus.Counter

	queryTotal   *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers payment metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		approvalTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "approvals_total",
				Help: "Total payment approvals by result",
			},
			[]string{"result"},
		)
		approvalLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "approval_latency_seconds",
				Help:    "Payment approval latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		gatewayCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "gateway_calls_total",
				Help: "Total approval gateway calls by gateway and result",
			},
			[]string{"gateway", "result"},
		)
		gatewayFallback = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "gateway_fallback_total",
				Help: "Total fallbacks from the primary gateway to the simulator by result",
			},
			[]string{"result"},
		)
		mockSubstitutions = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "gateway_mock_substitutions_total",
				Help: "Approvals synthesized locally after a primary transport failure",
			},
		)

		queryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "query_total",
				Help: "Total payment history queries by result",
			},
			[]string{"result"},
		)
		queryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "query_latency_seconds",
				Help:    "Payment history query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total payment history exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Payment history export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			approvalTotal,
			approvalLatency,
			gatewayCalls,
			gatewayFallback,
			mockSubstitutions,
			queryTotal,
			queryLatency,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveApproval records orchestrator latency and result.
func ObserveApproval(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if approvalTotal != nil {
		approvalTotal.WithLabelValues(result).Inc()
	}
	if approvalLatency != nil {
		approvalLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncGatewayCall counts a single gateway attempt.
func IncGatewayCall(gateway, result string) {
	if gateway == "" {
		gateway = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if gatewayCalls != nil {
		gatewayCalls.WithLabelValues(gateway, result).Inc()
	}
}

// IncGatewayFallback counts a fallback to the simulator.
func IncGatewayFallback(result string) {
	if result == "" {
		result = resultSuccess
	}
	if gatewayFallback != nil {
		gatewayFallback.WithLabelValues(result).Inc()
	}
}

// IncMockSubstitution counts a locally synthesized approval.
func IncMockSubstitution() {
	if mockSubstitutions != nil {
		mockSubstitutions.Inc()
	}
}

// ObserveQuery records history query latency and result.
func ObserveQuery(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if queryTotal != nil {
		queryTotal.WithLabelValues(result).Inc()
	}
	if queryLatency != nil {
		queryLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultRejected = resultRejected
)
