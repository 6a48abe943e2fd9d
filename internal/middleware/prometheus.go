package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "varsly_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "varsly_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	httpActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "varsly_http_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	// RunsTotal batch runs triggered over HTTP, by stage and result
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "varsly_triggered_runs_total",
			Help: "Ingest and digest runs triggered through the internal API",
		},
		[]string{"stage", "result"},
	)
)

// PrometheusMiddleware records request count and latency per route
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if strings.HasPrefix(path, "/metrics") {
			return c.Next()
		}

		start := time.Now()
		httpActiveConnections.Inc()
		defer httpActiveConnections.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		routePath := c.Route().Path
		if routePath == "" || routePath == "/" {
			routePath = path
		}

		httpRequestsTotal.WithLabelValues(c.Method(), routePath, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), routePath).Observe(time.Since(start).Seconds())
		return err
	}
}

// PrometheusHandler serves the default registry
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
