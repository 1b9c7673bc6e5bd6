package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vastu_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vastu_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	authFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vastu_auth_failures_total",
			Help: "Rejected bearer authentications by reason",
		},
		[]string{"reason"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vastu_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by class",
		},
		[]string{"class"},
	)

	guestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vastu_auto_guests_created_total",
		Help: "Guest identities created implicitly for anonymous callers",
	})
)

// Metrics records request counts and latency. Routes are labelled by their
// registered pattern, so path parameters do not inflate cardinality.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
