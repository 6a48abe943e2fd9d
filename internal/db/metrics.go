package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const slowQuery = time.Second

var (
	// query latency by first SQL keyword
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "varsly_db_query_duration_seconds",
			Help:    "Database query execution time in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation", "status"},
	)

	dbErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "varsly_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation", "error_type"},
	)

	dbSlowQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "varsly_db_slow_queries_total",
			Help: "Total number of slow queries (>1 second)",
		},
		[]string{"operation"},
	)

	dbConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "varsly_db_connection_pool_size",
			Help: "Maximum number of database connections in the pool",
		},
	)

	dbConnectionPoolIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "varsly_db_connection_pool_idle",
			Help: "Number of idle database connections in the pool",
		},
	)

	dbConnectionPoolInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "varsly_db_connection_pool_in_use",
			Help: "Number of database connections currently in use",
		},
	)
)

type queryStartKey struct{}

type queryStart struct {
	at        time.Time
	operation string
}

// queryMetrics pgx tracer feeding the query histograms
type queryMetrics struct{}

var _ pgx.QueryTracer = queryMetrics{}

func (queryMetrics) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), operation: operation(data.SQL)})
}

func (queryMetrics) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	observeQuery(start.operation, time.Since(start.at), data.Err)
}

func observeQuery(op string, d time.Duration, err error) {
	status := "success"
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		status = "error"
		dbErrorsTotal.WithLabelValues(op, fmt.Sprintf("%T", err)).Inc()
	}
	dbQueryDuration.WithLabelValues(op, status).Observe(d.Seconds())
	if d > slowQuery {
		dbSlowQueriesTotal.WithLabelValues(op).Inc()
	}
}

// operation first SQL keyword, upper-cased
func operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	switch op := strings.ToUpper(fields[0]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	case "CREATE", "ALTER", "DO":
		return "DDL"
	default:
		return "RAW"
	}
}

// UpdatePoolMetrics copies pool stats into the gauges
func UpdatePoolMetrics(pool *pgxpool.Pool) {
	stats := pool.Stat()
	dbConnectionPoolSize.Set(float64(stats.MaxConns()))
	dbConnectionPoolIdle.Set(float64(stats.IdleConns()))
	dbConnectionPoolInUse.Set(float64(stats.AcquiredConns()))
}

// CollectPoolMetrics updates pool gauges every interval until ctx is done
func (db *DB) CollectPoolMetrics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	UpdatePoolMetrics(db.Pool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			UpdatePoolMetrics(db.Pool)
		}
	}
}
