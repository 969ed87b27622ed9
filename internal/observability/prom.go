package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Auth core
	StrategyAttempts  *prometheus.CounterVec
	SignInDuration    prometheus.Histogram
	BootstrapRetries  prometheus.Counter
	ProvisioningTotal *prometheus.CounterVec
	ReconcilerPasses  *prometheus.CounterVec
	ReconcilerHealed  prometheus.Counter
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portal",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "portal",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				// Sane initial defaults
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "portal",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "portal",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),

		StrategyAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "auth",
				Name:      "strategy_attempts_total",
				Help:      "Credential strategy attempts by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		SignInDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "portal",
				Subsystem: "auth",
				Name:      "signin_duration_seconds",
				Help:      "Wall time of a full sign-in (all strategies).",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		BootstrapRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "auth",
				Name:      "bootstrap_profile_retries_total",
				Help:      "Profile lookup retries during session bootstrap.",
			},
		),
		ProvisioningTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "auth",
				Name:      "provisioning_total",
				Help:      "First-admin provisioning attempts by result.",
			},
			[]string{"result"},
		),
		ReconcilerPasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "reconciler",
				Name:      "passes_total",
				Help:      "Profile reconciler passes by result.",
			},
			[]string{"result"},
		),
		ReconcilerHealed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "portal",
				Subsystem: "reconciler",
				Name:      "profiles_healed_total",
				Help:      "Profile rows created from identity metadata.",
			},
		),
	}

	reg.MustRegister(
		p.RequestsTotal,
		p.RequestsDuration,
		p.InFlight,
		p.DbQueryDuration,
		p.DbErrorsTotal,
		p.StrategyAttempts,
		p.SignInDuration,
		p.BootstrapRetries,
		p.ProvisioningTotal,
		p.ReconcilerPasses,
		p.ReconcilerHealed,
	)

	return p
}

// GinMiddleware records request counts, latency and in-flight gauges per
// route template.
func (p *Prom) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		method := c.Request.Method

		p.InFlight.WithLabelValues(method, route).Inc()
		start := time.Now()

		c.Next()

		p.InFlight.WithLabelValues(method, route).Dec()

		status := strconv.Itoa(c.Writer.Status())
		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
	}
}
