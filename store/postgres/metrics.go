package postgres

import (
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// databaseTimer/databaseCounter record every query issued by this package,
// labeled by name and outcome, mirroring datastore/postgres's
// store_metrics.go.
var (
	databaseTimer = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "symboldb",
		Subsystem: "store_postgres",
		Name:      "query_duration_seconds",
		Help:      "Duration of a named query against the relational store.",
	}, []string{"query", "success"})

	databaseCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symboldb",
		Subsystem: "store_postgres",
		Name:      "query_total",
		Help:      "Count of a named query against the relational store.",
	}, []string{"query", "success"})
)

// observe times one query invocation; call the returned func with the
// query's error once it returns.
func observe(name string) func(errp *error) {
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		databaseTimer.WithLabelValues(name, "").Observe(v)
	}))
	return func(errp *error) {
		success := strconv.FormatBool(errors.Is(*errp, nil))
		databaseCounter.WithLabelValues(name, success).Inc()
		databaseTimer.WithLabelValues(name, success).Observe(timer.ObserveDuration().Seconds())
	}
}

// poolCollector exposes pgxpool.Pool.Stat() as prometheus gauges, standing
// in for claircore's pkg/poolstats (internal to that module, not importable
// here).
type poolCollector struct {
	pool *pgxpool.Pool
	name string

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	maxConns *prometheus.Desc
}

func newPoolCollector(pool *pgxpool.Pool, name string) *poolCollector {
	labels := prometheus.Labels{"pool": name}
	return &poolCollector{
		pool: pool,
		name: name,
		acquired: prometheus.NewDesc("symboldb_store_postgres_pool_acquired_conns", "Connections currently in use.", nil, labels),
		idle:     prometheus.NewDesc("symboldb_store_postgres_pool_idle_conns", "Connections currently idle.", nil, labels),
		total:    prometheus.NewDesc("symboldb_store_postgres_pool_total_conns", "Total connections managed by the pool.", nil, labels),
		maxConns: prometheus.NewDesc("symboldb_store_postgres_pool_max_conns", "Configured maximum pool size.", nil, labels),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.maxConns
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stat.MaxConns()))
}
