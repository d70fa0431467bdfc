package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "decoder_ledger_"

	resultSuccess = "success"
	resultError   = "error"
	resultPartial = "partial"
)

var (
	registerOnce sync.Once

	propagationTotal   *prometheus.CounterVec
	propagationLatency *prometheus.HistogramVec
	propagationWrites  *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	importTotal *prometheus.CounterVec
	importRows  prometheus.Counter

	exchangeRateFetches *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers metrics and, when db is non-nil, the DB-backed gauges.
func Init(db Querier, logger Logger) {
	registerOnce.Do(func() {
		propagationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cutoff_propagation_total",
				Help: "Total cutoff propagations by result",
			},
			[]string{"result"},
		)
		propagationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "cutoff_propagation_latency_seconds",
				Help:    "Cutoff propagation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		propagationWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cutoff_propagation_writes_total",
				Help: "Sibling account writes issued by propagations, by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total document exports by kind, format and result",
			},
			[]string{"kind", "format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Document export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "format", "result"},
		)

		importTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "inventory_import_total",
				Help: "Total inventory spreadsheet imports by result",
			},
			[]string{"result"},
		)
		importRows = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "inventory_import_rows_total",
				Help: "Inventory rows upserted by imports",
			},
		)

		exchangeRateFetches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exchange_rate_fetch_total",
				Help: "Exchange rate lookups by result",
			},
			[]string{"result"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method and status class",
			},
			[]string{"method", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		)

		prometheus.MustRegister(
			propagationTotal,
			propagationLatency,
			propagationWrites,
			exportTotal,
			exportLatency,
			importTotal,
			importRows,
			exchangeRateFetches,
			httpRequests,
			httpLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObservePropagation records propagation latency and result.
func ObservePropagation(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if propagationTotal != nil {
		propagationTotal.WithLabelValues(result).Inc()
	}
	if propagationLatency != nil {
		propagationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddPropagationWrites increments sibling write counters by count.
func AddPropagationWrites(result string, count int) {
	if count <= 0 {
		return
	}
	if result == "" {
		result = resultSuccess
	}
	if propagationWrites != nil {
		propagationWrites.WithLabelValues(result).Add(float64(count))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(kind, format, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(kind, format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(kind, format, result).Observe(duration.Seconds())
	}
}

// ObserveImport records an inventory import and the rows it stored.
func ObserveImport(result string, rows int) {
	if result == "" {
		result = resultSuccess
	}
	if importTotal != nil {
		importTotal.WithLabelValues(result).Inc()
	}
	if importRows != nil && rows > 0 {
		importRows.Add(float64(rows))
	}
}

// ObserveExchangeRate counts an exchange rate lookup.
func ObserveExchangeRate(result string) {
	if result == "" {
		result = "unknown"
	}
	if exchangeRateFetches != nil {
		exchangeRateFetches.WithLabelValues(result).Inc()
	}
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, status string, duration time.Duration) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, status).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultPartial = resultPartial

	ExchangeRateCached  = "cached"
	ExchangeRateFetched = "fetched"
	ExchangeRateFailed  = "failed"
)
