package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Querier is the subset of *sql.DB used by the gauges.
type Querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// Logger receives gauge query failures.
type Logger interface {
	Warn(msg string, fields ...zap.Field)
}

func registerDBMetrics(db Querier, logger Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "accounts",
			Help: "Stored account rows",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM accounts")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "inventory_items",
			Help: "Stored equipment inventory rows",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM equipment_inventory")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "propagations_with_failures",
			Help: "Propagations that still hold failed rows",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM cutoff_propagations WHERE failed_count > 0")
		},
	))
}

func queryCount(db Querier, logger Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.String("query", query), zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
